package handlers

import (
	"encoding/base64"
	"errors"

	"github.com/aidatapp/aidat-backend/internal/access"
	"github.com/aidatapp/aidat-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// AccessHandler exposes the verification endpoint intercom devices
// call on every keypad or face attempt.
type AccessHandler struct {
	verifier *access.Verifier
}

func NewAccessHandler(verifier *access.Verifier) *AccessHandler {
	return &AccessHandler{verifier: verifier}
}

// Verify handles POST /access/verify.
func (h *AccessHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyAccessRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	if req.AccessPointID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "access_point_id is required",
		})
	}

	verifyReq := access.VerifyRequest{
		AccessPointID: req.AccessPointID,
		PIN:           req.Pin,
		IP:            c.IP(),
		Device:        deviceName(c, req.Device),
	}

	if req.Face != nil {
		payload, err := decodeFaceImages(req.Face)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: "Face images must be valid base64",
			})
		}
		verifyReq.Face = payload
	}

	result, err := h.verifier.VerifyAccess(verifyReq)
	if err != nil {
		if errors.Is(err, access.ErrAccessPointNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		if errors.Is(err, access.ErrInvalidImage) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}

	return c.JSON(result)
}

func decodeFaceImages(imgs *dto.FaceImages) (*access.FacePayload, error) {
	front, err := base64.StdEncoding.DecodeString(imgs.Front)
	if err != nil {
		return nil, err
	}
	left, err := base64.StdEncoding.DecodeString(imgs.Left)
	if err != nil {
		return nil, err
	}
	right, err := base64.StdEncoding.DecodeString(imgs.Right)
	if err != nil {
		return nil, err
	}
	return &access.FacePayload{Front: front, Left: left, Right: right}, nil
}

func deviceName(c *fiber.Ctx, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return c.Get("X-Device-Id")
}
