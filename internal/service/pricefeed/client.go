package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"MandiWatch/internal/domain/models"
	drepo "MandiWatch/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements a ReportStream backed by the price discovery service's
// WebSocket feed.
type Client struct {
	apiKey         string
	websocketURL   string
	commodities    []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a new price feed ReportStream.
func New(apiKey, websocketURL string, commodities []string, reconnectDelay, pingInterval time.Duration) drepo.ReportStream {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		commodities:    commodities,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("pricefeed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("pricefeed: connected")
	return nil
}

// Subscribe subscribes to the configured commodities.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("pricefeed not connected")
	}
	for _, commodity := range c.commodities {
		msg := map[string]string{"type": "subscribe", "commodity": commodity}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", commodity, err)
		}
		log.Printf("pricefeed: subscribed %s", commodity)
	}
	return nil
}

type feedReport struct {
	Commodity   string  `json:"commodity"`
	Region      string  `json:"region"`
	Price       float64 `json:"price"`
	Quantity    float64 `json:"quantity"`
	Grade       string  `json:"grade"`
	SourceID    string  `json:"source_id"`
	ObservedAt  int64    `json:"observed_at"` // ms
	Reliability *float64 `json:"reliability"` // absent means 1
}

type feedSnapshot struct {
	Location   string  `json:"location"`
	Region     string  `json:"region"`
	Commodity  string  `json:"commodity"`
	OnHand     float64 `json:"on_hand"`
	SourceID   string  `json:"source_id"`
	ObservedAt int64   `json:"observed_at"` // ms
}

type feedMessage struct {
	Type      string         `json:"type"` // price_report or inventory_snapshot
	Reports   []feedReport   `json:"reports,omitempty"`
	Snapshots []feedSnapshot `json:"snapshots,omitempty"`
}

// Read streams report and snapshot events and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.PriceReport, <-chan *models.InventorySnapshot, <-chan error) {
	reports := make(chan *models.PriceReport, 1024)
	snaps := make(chan *models.InventorySnapshot, 256)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(reports)
		defer close(snaps)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("pricefeed conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("pricefeed read: %w", err)
					return
				}
				var m feedMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-data frames
					continue
				}
				switch m.Type {
				case "price_report":
					for _, d := range m.Reports {
						reliability := 1.0
						if d.Reliability != nil {
							reliability = *d.Reliability
						}
						r := &models.PriceReport{
							Commodity:   d.Commodity,
							Region:      d.Region,
							Price:       d.Price,
							Quantity:    d.Quantity,
							Grade:       models.QualityGrade(d.Grade),
							SourceID:    d.SourceID,
							ObservedAt:  time.UnixMilli(d.ObservedAt).UTC(),
							Reliability: reliability,
						}
						select {
						case reports <- r:
						default:
							// drop on backpressure
						}
					}
				case "inventory_snapshot":
					for _, d := range m.Snapshots {
						s := &models.InventorySnapshot{
							Location:   d.Location,
							Region:     d.Region,
							Commodity:  d.Commodity,
							OnHand:     d.OnHand,
							SourceID:   d.SourceID,
							ObservedAt: time.UnixMilli(d.ObservedAt).UTC(),
						}
						select {
						case snaps <- s:
						default:
						}
					}
				}
			}
		}
	}()

	return reports, snaps, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
