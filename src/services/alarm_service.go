package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/username/portfoly/backend/src/logger"
	"github.com/username/portfoly/backend/src/models"
	"github.com/username/portfoly/backend/src/processors"
)

var (
	ErrAlarmsNotAllowed = errors.New("price alarms require a paid tier")
	ErrAlarmNotFound    = errors.New("alarm not found")
)

// AlarmService holds the per-session price alarms. Alarms are deliberately
// not persisted: they live for the process lifetime, matching the source
// behavior of the tracked application.
type AlarmService struct {
	mu           sync.Mutex
	alarms       map[int64]*models.PriceAlarm
	nextID       int64
	notifier     Notifier
	entitlements *EntitlementService
}

func NewAlarmService(notifier Notifier, entitlements *EntitlementService) *AlarmService {
	return &AlarmService{
		alarms:       make(map[int64]*models.PriceAlarm),
		nextID:       1,
		notifier:     notifier,
		entitlements: entitlements,
	}
}

// Create registers an alarm. Gated on the tier limits: the free tier has no
// alarm capability.
func (s *AlarmService) Create(assetSymbol string, targetPrice float64, condition string) (*models.PriceAlarm, error) {
	if !s.entitlements.GetLimits().PriceAlarms {
		return nil, ErrAlarmsNotAllowed
	}
	if assetSymbol == "" {
		return nil, fmt.Errorf("asset symbol is required")
	}
	if targetPrice <= 0 {
		return nil, fmt.Errorf("target price must be positive")
	}
	if condition != models.AlarmAbove && condition != models.AlarmBelow {
		return nil, fmt.Errorf("condition must be %q or %q", models.AlarmAbove, models.AlarmBelow)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	alarm := &models.PriceAlarm{
		ID:          s.nextID,
		AssetSymbol: assetSymbol,
		TargetPrice: targetPrice,
		Condition:   condition,
		Active:      true,
		CreatedAt:   time.Now().Unix(),
	}
	s.alarms[alarm.ID] = alarm
	s.nextID++

	logger.L.Info("price alarm created", "id", alarm.ID, "symbol", assetSymbol, "condition", condition, "target", targetPrice)
	return copyAlarm(alarm), nil
}

func (s *AlarmService) List() []models.PriceAlarm {
	s.mu.Lock()
	defer s.mu.Unlock()

	alarms := make([]models.PriceAlarm, 0, len(s.alarms))
	for _, alarm := range s.alarms {
		alarms = append(alarms, *alarm)
	}
	sort.Slice(alarms, func(i, j int) bool { return alarms[i].ID < alarms[j].ID })
	return alarms
}

// Toggle flips an alarm between active and paused.
func (s *AlarmService) Toggle(id int64) (*models.PriceAlarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alarm, ok := s.alarms[id]
	if !ok {
		return nil, ErrAlarmNotFound
	}
	alarm.Active = !alarm.Active
	return copyAlarm(alarm), nil
}

func (s *AlarmService) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alarms[id]; !ok {
		return ErrAlarmNotFound
	}
	delete(s.alarms, id)
	return nil
}

// Evaluate checks every active alarm against the quote set and fires those
// whose condition is met. Fired alarms are deactivated (one shot) and a
// notification is sent best effort. Quotes resolve with the same
// exact-then-substring policy the valuation engine uses.
func (s *AlarmService) Evaluate(ctx context.Context, prices map[string]models.AssetPrice) []models.PriceAlarm {
	lookup := processors.NewPriceLookup(prices)

	s.mu.Lock()
	var fired []models.PriceAlarm
	for _, alarm := range s.alarms {
		price, known := lookup(alarm.AssetSymbol)
		if !known {
			continue
		}
		alarm.CurrentPrice = price
		if !alarm.Active {
			continue
		}

		triggered := (alarm.Condition == models.AlarmAbove && price >= alarm.TargetPrice) ||
			(alarm.Condition == models.AlarmBelow && price <= alarm.TargetPrice)
		if !triggered {
			continue
		}

		alarm.Active = false
		fired = append(fired, *alarm)
	}
	s.mu.Unlock()

	for _, alarm := range fired {
		if err := s.notifier.Notify(ctx, PriceAlarmNotification(alarm, alarm.CurrentPrice)); err != nil {
			logger.L.Warn("alarm notification failed", "alarmID", alarm.ID, "error", err)
		}
		logger.L.Info("price alarm fired", "id", alarm.ID, "symbol", alarm.AssetSymbol, "price", alarm.CurrentPrice)
	}
	return fired
}

func copyAlarm(alarm *models.PriceAlarm) *models.PriceAlarm {
	copied := *alarm
	return &copied
}
