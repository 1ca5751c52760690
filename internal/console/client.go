// Package console is a terminal client for the learning interface.
package console

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/koscakluka/ema-tutor/core/tutoring"
)

// Client is a websocket connection to a tutor server.
type Client struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func Dial(ctx context.Context, url string) (*Client, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	return &Client{ws: ws}, nil
}

func (c *Client) Send(msg tutoring.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (c *Client) Receive() (tutoring.Envelope, error) {
	var envelope tutoring.Envelope
	err := c.ws.ReadJSON(&envelope)
	return envelope, err
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.ws.Close()
}


// Run connects to the learning interface at url and runs the session
// interactively until the user quits.
func Run(ctx context.Context, url, sessionID string) error {
	client, err := Dial(ctx, url)
	if err != nil {
		return err
	}
	defer client.Close()

	program := tea.NewProgram(NewModel(client, sessionID), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("console failed: %w", err)
	}
	return nil
}
