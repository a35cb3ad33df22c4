package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"loancrm/models"
	"loancrm/utils"
)

// CRMEvent is the envelope every message on the events topic carries.
// Client is fully populated for client lifecycle events; intake events
// carry at least the client id.
type CRMEvent struct {
	Event           string        `json:"event"`
	Client          models.Client `json:"client"`
	QuestionnaireID string        `json:"questionnaire_id,omitempty"`
	ResponseID      uint          `json:"response_id,omitempty"`
	ClientCreated   bool          `json:"client_created,omitempty"`
}

// IntakeConsumer mirrors client records into the Redis cache and the
// Elasticsearch search index as events arrive. Postgres stays the
// system of record; this consumer never writes to it.
type IntakeConsumer struct {
	repo     models.Repository
	cache    utils.RedisClient
	es       utils.ElasticsearchClient
	reader   *kafka.Reader
	shutdown chan struct{}
}

func NewIntakeConsumer(broker string, repo models.Repository, cache utils.RedisClient, es utils.ElasticsearchClient) *IntakeConsumer {
	return &IntakeConsumer{
		repo:  repo,
		cache: cache,
		es:    es,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: []string{broker},
			Topic:   utils.EventsTopic,
			GroupID: "loancrm-group",
			MaxWait: 10 * time.Second,
		}),
		shutdown: make(chan struct{}),
	}
}

func (c *IntakeConsumer) Start(ctx context.Context) {
	log.Println("Starting CRM event consumer...")

	go func() {
		for {
			select {
			case <-c.shutdown:
				return
			default:
				c.processMessages(ctx)
			}
		}
	}()
}

func (c *IntakeConsumer) Stop() {
	close(c.shutdown)
	if err := c.reader.Close(); err != nil {
		log.Printf("Error closing Kafka reader: %v", err)
	}
}

func (c *IntakeConsumer) processMessages(ctx context.Context) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if err == context.Canceled {
			return
		}
		log.Printf("Kafka read error: %v (will retry)", err)
		time.Sleep(5 * time.Second)
		return
	}

	var event CRMEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Printf("Failed to unmarshal Kafka message: %v", err)
		return
	}

	switch event.Event {
	case "client_created", "client_updated":
		c.mirrorClient(ctx, &event.Client)
	case "client_deleted":
		c.removeClient(ctx, event.Client.ID)
	case "response_submitted":
		c.handleResponseSubmitted(ctx, &event)
	default:
		log.Printf("Unknown event type: %s", event.Event)
	}
}

// mirrorClient refreshes the cache entry and search document for one
// client.
func (c *IntakeConsumer) mirrorClient(ctx context.Context, client *models.Client) {
	cacheKey := fmt.Sprintf("client:%d", client.ID)
	clientJSON, err := json.Marshal(client)
	if err != nil {
		log.Printf("Failed to marshal client to JSON: %v", err)
		return
	}

	if err := c.cache.SetToCache(ctx, cacheKey, string(clientJSON), 24*time.Hour); err != nil {
		log.Printf("Failed to cache client: %v", err)
	}

	if c.es != nil {
		if err := c.es.IndexDocument(ctx, utils.ClientsIndex, fmt.Sprintf("%d", client.ID), client); err != nil {
			log.Printf("Failed to index client in Elasticsearch: %v", err)
		}
	}

	log.Printf("Mirrored client ID %d into cache and search index", client.ID)
}

func (c *IntakeConsumer) removeClient(ctx context.Context, clientID uint) {
	cacheKey := fmt.Sprintf("client:%d", clientID)
	if err := c.cache.DeleteFromCache(ctx, cacheKey); err != nil {
		log.Printf("Failed to delete client from cache: %v", err)
	}

	if c.es != nil {
		if err := c.es.DeleteDocument(ctx, utils.ClientsIndex, fmt.Sprintf("%d", clientID)); err != nil {
			log.Printf("Failed to delete client from Elasticsearch: %v", err)
		}
	}

	log.Printf("Removed client ID %d from cache and search index", clientID)
}

// handleResponseSubmitted makes first-time intake clients searchable.
// The event only carries the client id, so the record is re-read from
// Postgres before indexing.
func (c *IntakeConsumer) handleResponseSubmitted(ctx context.Context, event *CRMEvent) {
	client, err := c.repo.GetClientByID(ctx, event.Client.ID)
	if err != nil {
		log.Printf("Failed to load client %d for indexing: %v", event.Client.ID, err)
		return
	}
	c.mirrorClient(ctx, client)
}
