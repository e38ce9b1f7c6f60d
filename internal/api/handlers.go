package api

import (
	"context"
	"io"
	"iter"
	"mime/multipart"
	"net/http"
	"os"
	"slices"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"estatechain/server/internal/database"
	"estatechain/server/internal/models"
	"estatechain/server/internal/pinning"
	"estatechain/server/internal/scheduler"
	"estatechain/server/internal/telegram"
	"estatechain/server/internal/workflow"
)

const maxUploadSize = 20 << 20

// Workflow is the property workflow as driven over HTTP.
type Workflow interface {
	AddProperty(ctx context.Context, rc models.RequestContext, deed []byte) (*workflow.AddResult, error)
	VerifyProperty(ctx context.Context, rc models.RequestContext, propertyID uint64, gasLimit uint64) (*workflow.VerifyResult, error)
	RegisterProperty(ctx context.Context, rc models.RequestContext, propertyID uint64, form models.RegistrationForm, image []byte) (*workflow.RegisterResult, error)
	ListProperties(ctx context.Context) (iter.Seq[uint64], uint64, error)
	GetPropertyDetails(ctx context.Context, propertyID uint64) (*models.Property, error)
	BuyProperty(ctx context.Context, rc models.RequestContext, propertyID uint64) (*workflow.PurchaseResult, error)
}

// AccountLister lists the accounts managed by the node.
type AccountLister interface {
	Accounts(ctx context.Context) ([]common.Address, error)
}

// Journal reads the local history of observed transitions.
type Journal interface {
	GetPropertyRecord(propertyID uint64) (*database.PropertyRecord, error)
	GetTransitions(propertyID uint64) ([]database.TransitionRecord, error)
}

// TelegramSettings persists the notifier settings edited over HTTP.
type TelegramSettings interface {
	GetTelegramConfig() (*models.TelegramConfig, error)
	UpdateTelegramConfig(config *models.TelegramConfigRequest) error
}

// Syncer runs an on-demand chain sync.
type Syncer interface {
	RunManual(ctx context.Context) (scheduler.SyncResult, error)
}

type Handler struct {
	workflow        Workflow
	accounts        AccountLister
	journal         Journal
	settings        TelegramSettings
	syncer          Syncer
	telegramService *telegram.Service
	gatewayHost     string
	logger          *logrus.Logger
}

type deedRequest struct {
	Deed string `json:"deed" binding:"required"`
}

type verifyRequest struct {
	GasLimit uint64 `form:"gas_limit" json:"gas_limit"`
}

// NewHandler builds the HTTP handlers. syncer may be nil when chain sync is
// disabled.
func NewHandler(wf Workflow, accounts AccountLister, journal Journal, settings TelegramSettings, syncer Syncer, telegramService *telegram.Service, gatewayHost string, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		workflow:        wf,
		accounts:        accounts,
		journal:         journal,
		settings:        settings,
		syncer:          syncer,
		telegramService: telegramService,
		gatewayHost:     gatewayHost,
		logger:          logger,
	}
}

func (h *Handler) GetAccounts(c *gin.Context) {
	accounts, err := h.accounts.Accounts(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Failed to list accounts")
		return
	}

	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (h *Handler) GetEnums(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"property_types": models.PropertyTypeOptions(),
		"building_types": models.BuildingTypeOptions(),
		"parking_types":  models.ParkingTypeOptions(),
	})
}

// AddProperty accepts a deed either as a multipart file named "deed" or as
// JSON {"deed": "..."}.
func (h *Handler) AddProperty(c *gin.Context) {
	rc, err := requestContext(c)
	if err != nil {
		h.writeError(c, err, "Invalid account")
		return
	}

	var deed []byte
	if file, err := c.FormFile("deed"); err == nil {
		deed, err = readUpload(file)
		if err != nil {
			h.writeError(c, err, "Failed to read deed")
			return
		}
	} else {
		var req deedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.writeError(c, models.NewValidationError("deed", "a deed file or JSON body is required"), "Invalid request body")
			return
		}
		deed = []byte(req.Deed)
	}

	result, err := h.workflow.AddProperty(c.Request.Context(), rc, deed)
	if err != nil {
		h.writeError(c, err, "Failed to add property")
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *Handler) VerifyProperty(c *gin.Context) {
	rc, err := requestContext(c)
	if err != nil {
		h.writeError(c, err, "Invalid account")
		return
	}
	propertyID, err := workflow.ParsePropertyID(c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Invalid property id")
		return
	}

	var req verifyRequest
	if err := c.ShouldBind(&req); err != nil && c.Request.ContentLength > 0 {
		h.writeError(c, models.NewValidationError("gas_limit", "must be a non-negative integer"), "Invalid request body")
		return
	}
	if gas := c.Query("gas_limit"); gas != "" {
		if req.GasLimit, err = strconv.ParseUint(gas, 10, 64); err != nil {
			h.writeError(c, models.NewValidationError("gas_limit", "must be a non-negative integer"), "Invalid gas limit")
			return
		}
	}

	result, err := h.workflow.VerifyProperty(c.Request.Context(), rc, propertyID, req.GasLimit)
	if err != nil {
		h.writeError(c, err, "Failed to verify property")
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) RegisterProperty(c *gin.Context) {
	rc, err := requestContext(c)
	if err != nil {
		h.writeError(c, err, "Invalid account")
		return
	}
	propertyID, err := workflow.ParsePropertyID(c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Invalid property id")
		return
	}

	var form models.RegistrationForm
	if err := c.ShouldBind(&form); err != nil {
		h.writeError(c, models.NewValidationError("form", "%v", err), "Invalid request body")
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		h.writeError(c, models.NewValidationError("image", "is required"), "Missing image")
		return
	}
	image, err := readUpload(file)
	if err != nil {
		h.writeError(c, err, "Failed to read image")
		return
	}

	result, err := h.workflow.RegisterProperty(c.Request.Context(), rc, propertyID, form, image)
	if err != nil {
		h.writeError(c, err, "Failed to register property")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"property_id":  result.PropertyID,
		"token_id":     result.TokenID,
		"metadata_uri": result.MetadataURI,
		"pins":         result.Pins,
		"receipt":      result.Receipt,
		"links": gin.H{
			"image":    pinning.GatewayLink(h.gatewayHost, result.Pins.ImageCID),
			"metadata": pinning.GatewayLink(h.gatewayHost, result.Pins.MetadataCID),
		},
	})
}

func (h *Handler) ListProperties(c *gin.Context) {
	ids, total, err := h.workflow.ListProperties(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Failed to list properties")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": total,
		"ids":   slices.Collect(ids),
	})
}

func (h *Handler) GetProperty(c *gin.Context) {
	propertyID, err := workflow.ParsePropertyID(c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Invalid property id")
		return
	}

	property, err := h.workflow.GetPropertyDetails(c.Request.Context(), propertyID)
	if err != nil {
		h.writeError(c, err, "Failed to get property")
		return
	}

	response := gin.H{"property": property}
	if property.TokenURI != "" {
		response["metadata_link"] = pinning.GatewayLink(h.gatewayHost, property.TokenURI)
	}
	c.JSON(http.StatusOK, response)
}

func (h *Handler) BuyProperty(c *gin.Context) {
	rc, err := requestContext(c)
	if err != nil {
		h.writeError(c, err, "Invalid account")
		return
	}
	propertyID, err := workflow.ParsePropertyID(c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Invalid property id")
		return
	}

	result, err := h.workflow.BuyProperty(c.Request.Context(), rc, propertyID)
	if err != nil {
		h.writeError(c, err, "Failed to buy property")
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetPropertyHistory(c *gin.Context) {
	propertyID, err := workflow.ParsePropertyID(c.Param("id"))
	if err != nil {
		h.writeError(c, err, "Invalid property id")
		return
	}

	record, err := h.journal.GetPropertyRecord(propertyID)
	if err != nil {
		h.writeError(c, err, "Failed to get property history")
		return
	}

	transitions, err := h.journal.GetTransitions(propertyID)
	if err != nil {
		h.writeError(c, err, "Failed to get property history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"property":    record,
		"transitions": transitions,
	})
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	if file.Size > maxUploadSize {
		return nil, models.NewValidationError(file.Filename, "exceeds %d bytes", maxUploadSize)
	}
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadSize))
}

// SyncChain mirrors the registry into the journal right away
func (h *Handler) SyncChain(c *gin.Context) {
	if h.syncer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Chain sync is disabled"})
		return
	}

	result, err := h.syncer.RunManual(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Chain sync failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  result.Total,
		"synced": result.Synced,
		"failed": result.Failed,
	})
}
