package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/paddock-pulse/paddock-pulse-poc/internal/properties"
)

type Message struct {
	Embeds []Embed `json:"embeds"`
}

type Embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

func SendErrorNotification(errorMessage string) error {
	return send(properties.WebhookErrorURL(), Message{
		Embeds: []Embed{{
			Title:       "Run failed",
			Description: errorMessage,
			Color:       16711680,
		}},
	})
}

func SendSuccessNotification(summary string) error {
	return send(properties.WebhookSuccessURL(), Message{
		Embeds: []Embed{{
			Title:       "Run completed",
			Description: summary,
			Color:       65280,
		}},
	})
}

func send(url string, message Message) error {
	if url == "" {
		return nil
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send webhook notification, status code: %d", resp.StatusCode)
	}
	return nil
}
