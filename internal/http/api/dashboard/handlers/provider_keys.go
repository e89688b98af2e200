package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CLIProxyAPIKeyManager/internal/service"
)

// maxImportBytes bounds the size of an uploaded CSV file.
const maxImportBytes = 5 << 20

// ProviderKeyHandler serves the caller's provider keys.
type ProviderKeyHandler struct {
	svc *service.Service // Credential facade.
}

// NewProviderKeyHandler constructs a provider key handler.
func NewProviderKeyHandler(svc *service.Service) *ProviderKeyHandler {
	RegisterValidators()
	return &ProviderKeyHandler{svc: svc}
}

// createProviderKeyRequest captures the payload for adding a provider key.
type createProviderKeyRequest struct {
	ProviderName string `json:"provider_name" binding:"required,provider"` // Provider identifier or alias.
	APIKey       string `json:"api_key" binding:"required"`                // Plaintext secret, never echoed back.
	Name         string `json:"name"`                                      // Optional display name.
}

// updateProviderKeyRequest captures the selection toggle payload.
type updateProviderKeyRequest struct {
	IsSelected *bool `json:"is_selected" binding:"required"` // Desired selection state.
}

// importProviderKeysRequest captures a JSON CSV import payload.
type importProviderKeysRequest struct {
	ProviderName string `json:"provider_name" binding:"required,provider"` // Provider for every row.
	Content      string `json:"content"`                                   // CSV text.
}

// Create adds a provider key.
func (h *ProviderKeyHandler) Create(c *gin.Context) {
	var body createProviderKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		writeBindError(c, "provider_name and api_key are required")
		return
	}
	key, errAdd := h.svc.AddProviderKey(c.Request.Context(), userID(c), service.AddProviderKeyInput{
		Provider: body.ProviderName,
		Secret:   body.APIKey,
		Name:     body.Name,
	})
	if errAdd != nil {
		writeError(c, errAdd)
		return
	}
	c.JSON(http.StatusCreated, key)
}

// List returns the caller's provider keys, optionally filtered by ?provider=.
func (h *ProviderKeyHandler) List(c *gin.Context) {
	keys, errList := h.svc.ListProviderKeys(c.Request.Context(), userID(c), c.Query("provider"))
	if errList != nil {
		writeError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// Get returns one provider key.
func (h *ProviderKeyHandler) Get(c *gin.Context) {
	key, errGet := h.svc.GetProviderKey(c.Request.Context(), userID(c), c.Param("id"))
	if errGet != nil {
		writeError(c, errGet)
		return
	}
	c.JSON(http.StatusOK, key)
}

// Update selects or unselects a provider key.
func (h *ProviderKeyHandler) Update(c *gin.Context) {
	var body updateProviderKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		writeBindError(c, "is_selected is required")
		return
	}
	ctx := c.Request.Context()
	var errUpdate error
	if *body.IsSelected {
		_, errUpdate = h.svc.SelectProviderKey(ctx, userID(c), c.Param("id"))
	} else {
		_, errUpdate = h.svc.UnselectProviderKey(ctx, userID(c), c.Param("id"))
	}
	if errUpdate != nil {
		writeError(c, errUpdate)
		return
	}
	key, errGet := h.svc.GetProviderKey(ctx, userID(c), c.Param("id"))
	if errGet != nil {
		writeError(c, errGet)
		return
	}
	c.JSON(http.StatusOK, key)
}

// Delete removes one provider key.
func (h *ProviderKeyHandler) Delete(c *gin.Context) {
	if errDelete := h.svc.DeleteProviderKey(c.Request.Context(), userID(c), c.Param("id")); errDelete != nil {
		writeError(c, errDelete)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteAll removes every key of ?provider_name=.
func (h *ProviderKeyHandler) DeleteAll(c *gin.Context) {
	provider := strings.TrimSpace(c.Query("provider_name"))
	if provider == "" {
		writeBindError(c, "provider_name is required")
		return
	}
	deleted, errDelete := h.svc.DeleteAllProviderKeys(c.Request.Context(), userID(c), provider)
	if errDelete != nil {
		writeError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// Import adds provider keys from CSV, sent either as JSON or as a multipart "file" field.
func (h *ProviderKeyHandler) Import(c *gin.Context) {
	provider, content, ok := h.readImport(c)
	if !ok {
		return
	}
	result, errImport := h.svc.ImportProviderKeys(c.Request.Context(), userID(c), provider, content)
	if errImport != nil {
		writeError(c, errImport)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ProviderKeyHandler) readImport(c *gin.Context) (string, string, bool) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var body importProviderKeysRequest
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			writeBindError(c, "provider_name is required")
			return "", "", false
		}
		return body.ProviderName, body.Content, true
	}

	provider := strings.TrimSpace(c.PostForm("provider_name"))
	if provider == "" {
		writeBindError(c, "provider_name is required")
		return "", "", false
	}
	header, errFile := c.FormFile("file")
	if errFile != nil {
		writeBindError(c, "file is required")
		return "", "", false
	}
	if header.Size > maxImportBytes {
		writeBindError(c, "file is too large")
		return "", "", false
	}
	file, errOpen := header.Open()
	if errOpen != nil {
		writeBindError(c, "file is unreadable")
		return "", "", false
	}
	defer func() {
		_ = file.Close()
	}()
	data, errRead := io.ReadAll(io.LimitReader(file, maxImportBytes))
	if errRead != nil {
		writeBindError(c, "file is unreadable")
		return "", "", false
	}
	return provider, string(data), true
}
