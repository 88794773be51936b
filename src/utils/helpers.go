package utils

import (
	"context"
	"crs/src/config"
	"crs/src/db"
	"crs/src/ledger"
	"crs/src/lib"
	"crs/src/models"
	"crs/src/types"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"time"

	"github.com/gosimple/slug"
	"github.com/redis/go-redis/v9"
	"github.com/yeqown/go-qrcode"
	"gorm.io/gorm"
)

// CreateNewEvent records the event and seeds its capacity counter in one
// transaction.
func CreateNewEvent(params *types.CreateEventRequestBody, organizerId string, led ledger.Ledger) (uint, error) {
	startsAt, err := time.Parse(config.TIME_PARSE_FORMAT, params.StartsAt)
	if err != nil {
		return 0, err
	}
	var endsAt *time.Time
	if params.EndsAt != nil {
		t, err := time.Parse(config.TIME_PARSE_FORMAT, *params.EndsAt)
		if err != nil {
			return 0, err
		}
		endsAt = &t
	}
	status := types.EVENT_DRAFT
	if params.Publish {
		status = types.EVENT_OPEN
	}
	event := models.Event{
		Title:                params.Title,
		Slug:                 slug.Make(fmt.Sprintf("%s-%d", params.Title, startsAt.Unix())),
		Description:          params.Description,
		Location:             params.Location,
		StartsAt:             &startsAt,
		EndsAt:               endsAt,
		Capacity:             params.Capacity,
		Public:               params.Public,
		RequiresPaymentProof: params.RequiresPaymentProof,
		Status:               status,
		OrganizerID:          organizerId,
	}
	dbi := db.GetDb()
	err = dbi.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&event).Error; err != nil {
			return err
		}
		return led.Bind(tx).EnsureSlot(context.Background(), ledger.EventKey(event.ID), event.Capacity)
	})
	if err != nil {
		return 0, err
	}
	return event.ID, nil
}

// CreateNewSchedule adds a slot under an event. A schedule with its own
// capacity gets its own counter; otherwise the event counter governs it.
func CreateNewSchedule(eventId uint, params *types.CreateScheduleRequestBody, led ledger.Ledger) (uint, error) {
	scheduledAt, err := time.Parse(config.TIME_PARSE_FORMAT, params.ScheduledAt)
	if err != nil {
		return 0, err
	}
	sched := models.Schedule{
		EventID:     eventId,
		ScheduledAt: scheduledAt,
		Capacity:    params.Capacity,
	}
	dbi := db.GetDb()
	err = dbi.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Event{}).Where("id = ?", eventId).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return errors.New("event not found")
		}
		if err := tx.Create(&sched).Error; err != nil {
			return err
		}
		if sched.Capacity != nil {
			return led.Bind(tx).EnsureSlot(context.Background(), ledger.ScheduleKey(sched.ID), sched.Capacity)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sched.ID, nil
}

// LiveUnits sums the capacity units held by reservations that still count
// against an event: pending, confirmed and checked_in.
func LiveUnits(tx *gorm.DB, eventId uint) (uint, error) {
	var total *uint
	err := tx.
		Model(&models.Reservation{}).
		Where("event_id = ? AND status IN ?", eventId, []types.ReservationStatus{
			types.RESERVATION_PENDING,
			types.RESERVATION_CONFIRMED,
			types.RESERVATION_CHECKED_IN,
		}).
		Select("SUM(party_size)").
		Scan(&total).
		Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// GetEventStats reads admitted/remaining for an event, going through a
// short-lived redis snapshot to keep the public listing cheap.
func GetEventStats(ctx context.Context, event *models.Event, led ledger.Ledger) (*models.EventStats, error) {
	rd := lib.GetRedisClient()
	cacheKey := fmt.Sprintf("event::%d:stats", event.ID)
	if rd != nil {
		raw, err := rd.Get(ctx, cacheKey).Result()
		if err == nil {
			var cached models.EventStats
			if jerr := json.Unmarshal([]byte(raw), &cached); jerr == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("Error reading stats cache for event %d: %s\n", event.ID, err.Error())
		}
	}
	admitted, remaining, err := led.Usage(ctx, ledger.EventKey(event.ID))
	if err != nil {
		return nil, err
	}
	stats := &models.EventStats{
		EventID:   event.ID,
		Admitted:  admitted,
		Remaining: remaining,
	}
	if rd != nil {
		raw, _ := json.Marshal(stats)
		if err := rd.Set(ctx, cacheKey, string(raw), 30*time.Second).Err(); err != nil {
			log.Printf("Error caching stats for event %d: %s\n", event.ID, err.Error())
		}
	}
	return stats, nil
}

// RenderQRCode saves the reservation token as a scannable jpeg and caches
// the file path so repeated downloads skip re-rendering.
func RenderQRCode(ctx context.Context, r *models.Reservation) (string, error) {
	filename := fmt.Sprintf("rescode_%s", r.Reference.String())
	rd := lib.GetRedisClient()
	if rd != nil {
		cached, err := rd.Get(ctx, filename).Result()
		if err == nil && cached != "" {
			if _, serr := os.Stat(cached); serr == nil {
				return cached, nil
			}
		} else if err != nil && !errors.Is(err, redis.Nil) {
			log.Printf("Error reading from cache: %s\n", err.Error())
		}
	}
	qrc, err := qrcode.New(r.QRToken)
	if err != nil {
		return "", err
	}
	tempdir := os.Getenv("TEMP_DIR")
	if tempdir == "" {
		tempdir = os.TempDir()
	}
	filepath := path.Join(tempdir, fmt.Sprintf("%s.jpeg", filename))
	if err := qrc.Save(filepath); err != nil {
		log.Printf("Could not save qrcode to file [%s]: %s\n", filepath, err.Error())
		return "", err
	}
	if rd != nil {
		rd.SetEx(ctx, filename, filepath, 2*time.Hour)
	}
	return filepath, nil
}

func IsProd() bool {
	return os.Getenv("API_ENV") == "production"
}
