package booking

import (
	"context"
	"fmt"
	"time"

	"roombooking/internal/events"
	"roombooking/internal/models"
	"roombooking/internal/repository"
)

const historyTimeout = 5 * time.Second

// RecordLastReserved returns an event handler that remembers the room of
// each created reservation for its leader.
func RecordLastReserved(history repository.HistoryRepository) events.EventHandler {
	return func(event events.Event) error {
		var r models.Reservation
		if err := event.Decode(&r); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()
		return history.SetLastReserved(ctx, r.LeaderCode, r.RoomCode)
	}
}
