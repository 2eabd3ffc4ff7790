package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/aidatapp/aidat-backend/internal/access"
	"github.com/aidatapp/aidat-backend/internal/dto"
	"github.com/aidatapp/aidat-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

// CredentialsHandler exposes the management surface for pins, guest
// codes, and face enrollment.
type CredentialsHandler struct {
	manager *access.Manager
}

func NewCredentialsHandler(manager *access.Manager) *CredentialsHandler {
	return &CredentialsHandler{manager: manager}
}

// SetMasterPin handles PUT /credentials/master-pin.
func (h *CredentialsHandler) SetMasterPin(c *fiber.Ctx) error {
	actorID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.SetMasterPinRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.manager.SetMasterPin(actorID, req.AccessPointID, req.Pin); err != nil {
		return credentialError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// SetUserPin handles PUT /credentials/user-pin.
func (h *CredentialsHandler) SetUserPin(c *fiber.Ctx) error {
	actorID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.SetUserPinRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	targetID := req.TargetUserID
	if targetID == 0 {
		targetID = actorID
	}

	if err := h.manager.SetUserPin(actorID, targetID, req.AccessPointID, req.Pin, req.MasterPin); err != nil {
		return credentialError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// UpdateOwnPin handles PUT /credentials/my-pin.
func (h *CredentialsHandler) UpdateOwnPin(c *fiber.Ctx) error {
	actorID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.UpdateOwnPinRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.manager.UpdateOwnPin(actorID, req.AccessPointID, req.NewPin, req.OldPin); err != nil {
		return credentialError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// CreateAccessCode handles POST /credentials/access-codes.
func (h *CredentialsHandler) CreateAccessCode(c *fiber.Ctx) error {
	actorID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.CreateAccessCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	code, plain, err := h.manager.CreateAccessCode(actorID, access.CreateAccessCodeInput{
		BuildingID:    req.BuildingID,
		AccessPointID: req.AccessPointID,
		TenantUserID:  req.TenantUserID,
		Label:         req.Label,
		Code:          req.Code,
		ValidFrom:     req.ValidFrom,
		ExpiresAt:     req.ExpiresAt,
		IsSingleUse:   req.IsSingleUse,
		StorePlain:    req.StorePlain,
	})
	if err != nil {
		return credentialError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.AccessCodeResponse{
		ID:          code.ID,
		BuildingID:  code.BuildingID,
		Label:       code.Label,
		Code:        plain,
		ValidFrom:   code.ValidFrom,
		ExpiresAt:   code.ExpiresAt,
		IsSingleUse: code.IsSingleUse,
		IsActive:    code.IsActive,
	})
}

// CreateTemporaryPin handles POST /credentials/temporary-pins.
func (h *CredentialsHandler) CreateTemporaryPin(c *fiber.Ctx) error {
	actorID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.CreateTemporaryPinRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	pin, plain, err := h.manager.CreateTemporaryPin(actorID, access.CreateTemporaryPinInput{
		AccessPointID: req.AccessPointID,
		Pin:           req.Pin,
		ExpiresAt:     req.ExpiresAt,
		MaxUses:       req.MaxUses,
	})
	if err != nil {
		return credentialError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":         pin.ID,
		"pin":        plain,
		"expires_at": pin.ExpiresAt,
		"max_uses":   pin.MaxUses,
	})
}

// DeactivateAccessCode handles POST /credentials/access-codes/:id/deactivate.
func (h *CredentialsHandler) DeactivateAccessCode(c *fiber.Ctx) error {
	return h.changeCode(c, h.manager.DeactivateAccessCode)
}

// DeleteAccessCode handles DELETE /credentials/access-codes/:id.
func (h *CredentialsHandler) DeleteAccessCode(c *fiber.Ctx) error {
	return h.changeCode(c, h.manager.DeleteAccessCode)
}

func (h *CredentialsHandler) changeCode(c *fiber.Ctx, op func(actorID, codeID uint) error) error {
	actorID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	codeID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return badRequest(c, "Invalid code id")
	}

	if err := op(actorID, uint(codeID)); err != nil {
		return credentialError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// EnrollFace handles POST /credentials/face with multipart form fields
// front, left, right.
func (h *CredentialsHandler) EnrollFace(c *fiber.Ctx) error {
	actorID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	payload := &access.FacePayload{}
	mimeType := ""
	for _, angle := range []struct {
		field string
		dst   *[]byte
	}{
		{"front", &payload.Front},
		{"left", &payload.Left},
		{"right", &payload.Right},
	} {
		file, err := c.FormFile(angle.field)
		if err != nil {
			return badRequest(c, "Images front, left and right are required")
		}
		data, err := readUpload(file)
		if err != nil {
			return badRequest(c, "Failed to read uploaded image")
		}
		*angle.dst = data
		if mimeType == "" {
			mimeType = file.Header.Get("Content-Type")
		}
	}

	bio, err := h.manager.EnrollFace(actorID, payload, mimeType, c.Get("X-Device-Id"))
	if err != nil {
		return credentialError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":        bio.ID,
		"is_active": bio.IsActive,
	})
}

// ListAccessLogs handles GET /credentials/access-logs.
func (h *CredentialsHandler) ListAccessLogs(c *fiber.Ctx) error {
	actorID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var accessPointID *uint
	if raw := c.Query("access_point_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return badRequest(c, "Invalid access_point_id")
		}
		v := uint(id)
		accessPointID = &v
	}

	logs, err := h.manager.ListAccessLogs(actorID, accessPointID, c.QueryInt("limit"))
	if err != nil {
		return credentialError(c, err)
	}
	return c.JSON(fiber.Map{"logs": logs, "count": len(logs)})
}

// --- helpers ---

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Unauthorized",
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: msg,
	})
}

func credentialError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, access.ErrAccessPointNotFound),
		errors.Is(err, access.ErrBuildingNotFound),
		errors.Is(err, access.ErrCodeNotFound),
		errors.Is(err, access.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, access.ErrUnauthorized),
		errors.Is(err, access.ErrMasterPinRequired),
		errors.Is(err, access.ErrOldPinRequired):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, access.ErrInvalidPin),
		errors.Is(err, access.ErrInvalidWindow),
		errors.Is(err, access.ErrInvalidImage):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}
}
