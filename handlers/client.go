package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"loancrm/models"
	"loancrm/utils"
)

type ClientHandler struct {
	repo  models.Repository
	kafka utils.KafkaProducer
	es    utils.ElasticsearchClient
}

func NewClientHandler(repo models.Repository, kafka utils.KafkaProducer, es utils.ElasticsearchClient) *ClientHandler {
	return &ClientHandler{
		repo:  repo,
		kafka: kafka,
		es:    es,
	}
}

type ClientRequest struct {
	Name    string `json:"name" binding:"required,min=1,max=100"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Status  string `json:"status"`
	Notes   string `json:"notes"`
}

type ClientResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *ClientHandler) CreateClient(c *gin.Context) {
	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client := &models.Client{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
		Status:  models.NormalizeClientStatus(req.Status),
		Notes:   strings.TrimSpace(req.Notes),
	}

	if err := h.repo.CreateClient(c.Request.Context(), client); err != nil {
		if err == models.ErrDuplicateEmail {
			c.JSON(http.StatusConflict, gin.H{"error": "a client with this email already exists"})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create client"})
		return
	}

	if h.kafka != nil {
		go h.sendClientEvent("client_created", client)
	}

	c.JSON(http.StatusCreated, toClientResponse(client))
}

func (h *ClientHandler) ListClients(c *gin.Context) {
	clients, err := h.repo.ListClients(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list clients"})
		return
	}

	out := make([]ClientResponse, len(clients))
	for i := range clients {
		out[i] = toClientResponse(&clients[i])
	}
	c.JSON(http.StatusOK, out)
}

func (h *ClientHandler) GetClient(c *gin.Context) {
	id, err := parseUint(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client ID format"})
		return
	}

	client, err := h.repo.GetClientByID(c.Request.Context(), id)
	if err != nil {
		if err == models.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load client"})
		return
	}

	c.JSON(http.StatusOK, toClientResponse(client))
}

func (h *ClientHandler) UpdateClient(c *gin.Context) {
	id, err := parseUint(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client ID format"})
		return
	}

	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, err := h.repo.GetClientByID(c.Request.Context(), id)
	if err != nil {
		if err == models.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load client"})
		return
	}

	client.Name = strings.TrimSpace(req.Name)
	client.Email = strings.TrimSpace(req.Email)
	client.Phone = strings.TrimSpace(req.Phone)
	client.Address = strings.TrimSpace(req.Address)
	client.Status = models.NormalizeClientStatus(req.Status)
	client.Notes = strings.TrimSpace(req.Notes)

	if err := h.repo.UpdateClient(c.Request.Context(), client); err != nil {
		if err == models.ErrDuplicateEmail {
			c.JSON(http.StatusConflict, gin.H{"error": "a client with this email already exists"})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update client"})
		return
	}

	if h.kafka != nil {
		go h.sendClientEvent("client_updated", client)
	}

	c.JSON(http.StatusOK, toClientResponse(client))
}

func (h *ClientHandler) DeleteClient(c *gin.Context) {
	id, err := parseUint(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client ID format"})
		return
	}

	if err := h.repo.DeleteClient(c.Request.Context(), id); err != nil {
		if err == models.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete client"})
		return
	}

	if h.kafka != nil {
		go h.sendRawEvent(map[string]interface{}{
			"event": "client_deleted",
			"client": map[string]interface{}{
				"id": id,
			},
		})
	}

	c.Status(http.StatusNoContent)
}

// SearchClients queries the Elasticsearch index maintained by the event
// consumer. Without Elasticsearch configured the endpoint degrades to
// 503 rather than scanning Postgres.
func (h *ClientHandler) SearchClients(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	if h.es == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not available"})
		return
	}

	results, err := h.es.Search(c.Request.Context(), utils.ClientsIndex, utils.ClientSearchQuery(q))
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *ClientHandler) sendClientEvent(eventType string, client *models.Client) {
	h.sendRawEvent(map[string]interface{}{
		"event":  eventType,
		"client": client,
	})
}

func (h *ClientHandler) sendRawEvent(event interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	jsonData, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal Kafka event: %v", err)
		return
	}

	if err := h.kafka.SendMessage(ctx, utils.EventsTopic, nil, jsonData); err != nil {
		log.Printf("Failed to send Kafka message: %v", err)
	}
}

func toClientResponse(client *models.Client) ClientResponse {
	return ClientResponse{
		ID:        client.ID,
		Name:      client.Name,
		Email:     client.Email,
		Phone:     client.Phone,
		Address:   client.Address,
		Status:    client.Status,
		Notes:     client.Notes,
		CreatedAt: client.CreatedAt,
	}
}

func parseUint(s string) (uint, error) {
	var id uint
	_, err := fmt.Sscanf(s, "%d", &id)
	return id, err
}
