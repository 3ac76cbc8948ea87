package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/username/portfoly/backend/src/logger"
	"github.com/username/portfoly/backend/src/models"
)

// NewNotifier selects the notifier variant at startup. Unknown kinds fall
// back to the log notifier so a misconfigured environment still runs.
func NewNotifier(kind, expoPushURL, expoPushToken string) Notifier {
	switch kind {
	case "expo":
		return &expoNotifier{
			httpClient: &http.Client{Timeout: 10 * time.Second},
			pushURL:    expoPushURL,
			pushToken:  expoPushToken,
		}
	case "log":
		return &logNotifier{}
	default:
		logger.L.Warn("Unknown notifier kind, falling back to log notifier", "kind", kind)
		return &logNotifier{}
	}
}

// logNotifier writes notifications to the application log. Development default.
type logNotifier struct{}

func (n *logNotifier) Notify(ctx context.Context, notification Notification) error {
	logger.L.Info("notification", "title", notification.Title, "body", notification.Body)
	return nil
}

// expoNotifier delivers through the Expo push gateway. Best effort, single
// shot: no retry, no queue.
type expoNotifier struct {
	httpClient *http.Client
	pushURL    string
	pushToken  string
}

func (n *expoNotifier) Notify(ctx context.Context, notification Notification) error {
	if n.pushToken == "" {
		logger.L.Warn("Expo push token not configured, dropping notification", "title", notification.Title)
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"to":    n.pushToken,
		"title": notification.Title,
		"body":  notification.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.pushURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send push notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}

	logger.L.Debug("push notification sent", "title", notification.Title)
	return nil
}

// PriceAlarmNotification formats the message for a fired alarm.
func PriceAlarmNotification(alarm models.PriceAlarm, currentPrice float64) Notification {
	direction := "above"
	if alarm.Condition == models.AlarmBelow {
		direction = "below"
	}
	return Notification{
		Title: "Price alarm",
		Body: fmt.Sprintf("%s moved %s your target: $%.2f (target $%.2f)",
			alarm.AssetSymbol, direction, currentPrice, alarm.TargetPrice),
	}
}

// TransactionNotification formats the confirmation for a recorded transaction.
func TransactionNotification(symbol, txType string, quantity float64) Notification {
	action := "Buy"
	if txType == models.TransactionSell {
		action = "Sell"
	}
	return Notification{
		Title: "Transaction recorded",
		Body:  fmt.Sprintf("%s order completed: %g %s", action, quantity, symbol),
	}
}

// PortfolioUpdateNotification formats a portfolio valuation summary.
func PortfolioUpdateNotification(totalValue, changePct float64) Notification {
	sign := ""
	if changePct >= 0 {
		sign = "+"
	}
	return Notification{
		Title: "Portfolio update",
		Body:  fmt.Sprintf("Portfolio value: $%.2f (%s%.2f%%)", totalValue, sign, changePct),
	}
}
