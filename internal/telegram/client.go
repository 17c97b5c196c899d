// Package telegram реализует транспорт членства и сообщений поверх Bot API.
//
// Выдача доступа — одноразовая пригласительная ссылка с ограниченным
// сроком действия; отзыв — бан с немедленным разбаном, чтобы пользователь
// мог вернуться после новой оплаты. Исходящие вызовы ограничены
// rate.Limiter, лимиты Bot API общие на весь процесс.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Client — HTTP-клиент Telegram Bot API.
type Client struct {
	token      string
	apiURL     string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu         sync.Mutex
	statusMsgs map[int64]int // последнее сообщение-индикатор по чату
}

// Options — настройки клиента.
type Options struct {
	Token       string
	APIURL      string
	CallTimeout time.Duration
	SendRate    float64
	SendBurst   int
}

// NewClient создаёт клиент Bot API.
func NewClient(opts Options) *Client {
	return &Client{
		token:      opts.Token,
		apiURL:     opts.APIURL,
		httpClient: &http.Client{Timeout: opts.CallTimeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.SendRate), opts.SendBurst),
		statusMsgs: make(map[int64]int),
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	const op = "telegram.call"

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(params); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.apiURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !api.OK {
		return fmt.Errorf("%s: %s: %s", op, method, api.Description)
	}
	if result != nil {
		if err := json.Unmarshal(api.Result, result); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

type sentMessage struct {
	MessageID int `json:"message_id"`
}

// Send отправляет текстовое сообщение пользователю или в чат.
func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	params := map[string]any{"chat_id": chatID, "text": text}
	return c.call(ctx, "sendMessage", params, nil)
}

// SendStatusMessage отправляет сообщение-индикатор состояния платежа и
// запоминает его, чтобы последующие обновления редактировали его же.
func (c *Client) SendStatusMessage(ctx context.Context, chatID int64, text string) error {
	params := map[string]any{"chat_id": chatID, "text": text}
	var msg sentMessage
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return err
	}
	c.mu.Lock()
	c.statusMsgs[chatID] = msg.MessageID
	c.mu.Unlock()
	return nil
}

// EditLastStatusMessage редактирует последний индикатор в чате. Если
// индикатора нет или редактирование не удалось, отправляется новое
// сообщение, которое становится индикатором.
func (c *Client) EditLastStatusMessage(ctx context.Context, chatID int64, text string) error {
	c.mu.Lock()
	messageID, ok := c.statusMsgs[chatID]
	c.mu.Unlock()

	if ok {
		params := map[string]any{"chat_id": chatID, "message_id": messageID, "text": text}
		if err := c.call(ctx, "editMessageText", params, nil); err == nil {
			return nil
		}
	}
	return c.SendStatusMessage(ctx, chatID, text)
}

type inviteLink struct {
	InviteLink string `json:"invite_link"`
}

// CreateInviteLink создаёт одноразовую пригласительную ссылку в группу.
func (c *Client) CreateInviteLink(ctx context.Context, groupID int64, name string, ttl time.Duration) (string, error) {
	params := map[string]any{
		"chat_id":      groupID,
		"name":         name,
		"expire_date":  time.Now().Add(ttl).Unix(),
		"member_limit": 1,
	}
	var link inviteLink
	if err := c.call(ctx, "createChatInviteLink", params, &link); err != nil {
		return "", err
	}
	return link.InviteLink, nil
}

// GrantAccess выдаёт пользователю доступ в группу: создаёт одноразовую
// ссылку и отправляет её пользователю. Возвращает ссылку.
func (c *Client) GrantAccess(ctx context.Context, groupID, userID int64, ttl time.Duration) (string, error) {
	const op = "telegram.GrantAccess"

	link, err := c.CreateInviteLink(ctx, groupID, fmt.Sprintf("VIP %d", userID), ttl)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	text := fmt.Sprintf("🎉 Use este link para entrar no grupo VIP:\n%s\n\nO link expira em 7 dias e só pode ser usado uma vez.", link)
	if err := c.Send(ctx, userID, text); err != nil {
		return link, fmt.Errorf("%s: %w", op, err)
	}
	return link, nil
}

// RevokeAccess убирает пользователя из группы: бан и немедленный разбан,
// чтобы повторная покупка снова открывала вход по ссылке.
func (c *Client) RevokeAccess(ctx context.Context, groupID, userID int64) error {
	const op = "telegram.RevokeAccess"

	if err := c.call(ctx, "banChatMember", map[string]any{"chat_id": groupID, "user_id": userID}, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.call(ctx, "unbanChatMember", map[string]any{"chat_id": groupID, "user_id": userID}, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
