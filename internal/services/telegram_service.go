package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/flowerhaven/internal/checkout"
)

const (
	telegramAPI     = "https://api.telegram.org"
	DefaultCurrency = "NGN"
)

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
	baseURL     string
	http        *http.Client
	log         *zap.Logger
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string, log *zap.Logger) *TelegramService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		baseURL:     telegramAPI,
		http:        &http.Client{Timeout: 15 * time.Second},
		log:         log.Named("telegram"),
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		s.log.Debug("bot token not configured, message dropped")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		s.log.Warn("failed to send message", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Warn("unexpected status", zap.Int("status", resp.StatusCode))
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		s.log.Debug("admin chat ID not configured, message dropped")
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// FormatPrice formats price with currency and thousand separators.
func FormatPrice(amount decimal.Decimal, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}

	str := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(str, ".")

	var result strings.Builder
	if amount.IsNegative() {
		result.WriteByte('-')
	}
	length := len(whole)
	for i, digit := range whole {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}

	return result.String() + "." + frac + " " + currency
}

// NotifyNewOrder sends notification about new order to admin chat.
func (s *TelegramService) NotifyNewOrder(ctx context.Context, payload *checkout.OrderPayload, record *checkout.OrderRecord) error {
	if s.adminChatID == "" {
		return nil
	}

	var itemsList strings.Builder
	for i, item := range payload.Items() {
		name := item.ProductName
		if name == "" {
			name = item.ProductID
		}
		itemsList.WriteString(fmt.Sprintf("%d. <b>%s</b>\n   %d pcs = %s\n",
			i+1,
			html.EscapeString(name),
			item.Quantity,
			FormatPrice(item.Amount, ""),
		))
	}

	paymentText := "One-time"
	if payload.PaymentMethod() == checkout.PaymentSubscription {
		paymentText = "Subscription (" + string(payload.Frequency()) + ")"
	}

	customer := payload.Customer()
	delivery := payload.Delivery()

	message := fmt.Sprintf(`<b>💐 NEW ORDER</b>
<b>📋 Order:</b> %s
<b>👤 Customer:</b> %s
<b>📞 Phone:</b> %s
<b>🚚 Delivery:</b> %s, %s
<b>🕘 When:</b> %s at %s
<b>📦 Items:</b>
%s
<b>💰 Total:</b> %s
<b>💳 Payment:</b> %s
<b>🔖 Reference:</b> %s
━━━━━━━━━━━━━━━━━━`,
		record.OrderNumber,
		html.EscapeString(customer.FullName),
		html.EscapeString(customer.Phone),
		html.EscapeString(delivery.Address),
		html.EscapeString(delivery.Location),
		delivery.Date,
		delivery.TimeSlot,
		itemsList.String(),
		FormatPrice(payload.Total(), ""),
		paymentText,
		payload.Reference(),
	)

	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}

// NotifyReconciliation alerts admins that a payment was captured without an order.
func (s *TelegramService) NotifyReconciliation(ctx context.Context, reference string) error {
	message := fmt.Sprintf(`<b>⚠️ PAYMENT WITHOUT ORDER</b>
<b>🔖 Reference:</b> %s
Payment was captured but the order could not be recorded. Check the payment in Paystack and contact the customer.
━━━━━━━━━━━━━━━━━━`, html.EscapeString(reference))

	return s.SendToAdmin(ctx, message)
}

// Notify forwards checkout alerts that need a human. It never blocks the caller.
func (s *TelegramService) Notify(n checkout.Notification) {
	if n.Kind != checkout.NotifyReconciliationRequired {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.NotifyReconciliation(ctx, n.Reference); err != nil {
			s.log.Error("reconciliation alert failed", zap.String("reference", n.Reference), zap.Error(err))
		}
	}()
}
