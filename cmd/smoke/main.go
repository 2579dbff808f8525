package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog/log"

	"github.com/AZ-204-Projects/event-relay/internal/handlers"
)

// Smoke-checks a running relay end to end: health, enqueue, dequeue,
// acknowledge. Exits non-zero on any failure.

const maxDequeues = 50

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "relay base URL")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}
	if err := run(client, *baseURL); err != nil {
		log.Fatal().Err(err).Msg("smoke check failed")
	}
	log.Info().Msg("smoke check passed")
}

func run(client *http.Client, baseURL string) error {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return fmt.Errorf("error checking health: %s", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %d", resp.StatusCode)
	}

	payload := []byte(gofakeit.HackerPhrase())
	resp, err = client.Post(baseURL+"/events", "application/octet-stream", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error posting event: %s", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post event returned %d", resp.StatusCode)
	}
	var posted handlers.PostEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&posted); err != nil {
		return fmt.Errorf("error decoding post event response: %s", err)
	}
	log.Info().Str("message_id", posted.MessageID).Msg("event enqueued")

	// The queue may hold other messages; lease past them until ours shows up
	for attempt := 0; attempt < maxDequeues; attempt++ {
		resp, err := client.Post(baseURL+"/queue/dequeue?lease=1m", "", nil)
		if err != nil {
			return fmt.Errorf("error dequeuing: %s", err)
		}
		if resp.StatusCode == http.StatusNoContent {
			resp.Body.Close()
			return fmt.Errorf("queue drained without delivering message %s", posted.MessageID)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("dequeue returned %d", resp.StatusCode)
		}
		var delivered handlers.DequeueResponse
		err = json.NewDecoder(resp.Body).Decode(&delivered)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("error decoding dequeue response: %s", err)
		}
		if delivered.Message.ID != posted.MessageID {
			continue
		}
		if !bytes.Equal(delivered.Message.Body, payload) {
			return fmt.Errorf("delivered body does not match enqueued payload")
		}
		log.Info().Str("message_id", delivered.Message.ID).Msg("message delivered")
		return acknowledge(client, baseURL, delivered.Message.ID)
	}
	return fmt.Errorf("message %s not delivered after %d dequeues", posted.MessageID, maxDequeues)
}

func acknowledge(client *http.Client, baseURL, id string) error {
	req, err := http.NewRequest(http.MethodDelete, baseURL+"/queue/messages/"+id, nil)
	if err != nil {
		return fmt.Errorf("error building acknowledge request: %s", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error acknowledging: %s", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("acknowledge returned %d", resp.StatusCode)
	}
	log.Info().Str("message_id", id).Msg("message acknowledged")
	return nil
}
