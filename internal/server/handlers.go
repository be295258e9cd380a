package server

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/evidenceledger/eseal/internal/database"
	"github.com/evidenceledger/eseal/internal/errl"
	"github.com/evidenceledger/eseal/internal/models"
	"github.com/evidenceledger/eseal/internal/sealer"
	"github.com/evidenceledger/eseal/internal/ses"
)

// SealContentType is the media type used for encoded seals
const SealContentType = "application/octet-stream"

// handleJWKS handles the JSON Web Key Set endpoint
func (s *Server) handleJWKS(c *fiber.Ctx) error {
	jwks := s.jwtService.GetJWKS()
	return c.JSON(jwks)
}

// handleReportKey serves the report signing key in PEM format
func (s *Server) handleReportKey(c *fiber.Ctx) error {
	key, err := s.jwtService.GetPublicKey()
	if err != nil {
		return s.internalError(c, "Failed to export report key", err)
	}
	c.Set(fiber.HeaderContentType, "application/x-pem-file")
	return c.SendString(key)
}

// handleVerifyReport checks a verification report issued by this service and
// returns its claims
func (s *Server) handleVerifyReport(c *fiber.Ctx) error {
	token := strings.TrimSpace(string(c.Body()))
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing report in request body",
		})
	}

	claims, err := s.jwtService.ParseVerificationReport(token)
	if err != nil {
		slog.Debug("Rejected verification report", "error", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid verification report",
		})
	}
	return c.JSON(claims)
}

// internalError logs err, with its stack at debug level, and answers 500
func (s *Server) internalError(c *fiber.Ctx, msg string, err error) error {
	slog.Error(msg, "error", err)
	slog.Debug(msg, "stack", errl.Stack(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}

// handleVerify verifies the seal sent as request body and returns the
// outcome with a signed report
func (s *Server) handleVerify(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing seal in request body",
		})
	}

	at := s.now()
	res := s.verifier.VerifyAt(c.UserContext(), body, at)
	resp := models.NewVerificationResponse(res, at)

	digest := sha256.Sum256(body)
	report, err := s.jwtService.IssueVerificationReport(resp, hex.EncodeToString(digest[:]))
	if err != nil {
		return s.internalError(c, "Failed to sign verification report", err)
	}
	resp.Report = report

	if err := s.db.RecordVerification(&models.VerificationRecord{
		SealID:     resp.SealID,
		Status:     resp.Status.String(),
		Detail:     resp.Error,
		VerifiedAt: at,
	}); err != nil {
		slog.Error("Failed to record verification", "error", err)
	}

	slog.Info("Seal verification", "seal_id", resp.SealID, "status", resp.Status)
	return c.JSON(resp)
}

// handleGetSeal serves the encoded seal
func (s *Server) handleGetSeal(c *fiber.Ctx) error {
	rec, err := s.lookupSeal(c)
	if rec == nil {
		return err
	}

	c.Set(fiber.HeaderContentType, SealContentType)
	c.Attachment(rec.SealID + ".esl")
	return c.Send(rec.Data)
}

// handleInspectSeal renders the seal contents and its current verification status
func (s *Server) handleInspectSeal(c *fiber.Ctx) error {
	rec, err := s.lookupSeal(c)
	if rec == nil {
		return err
	}

	at := s.now()
	res := s.verifier.VerifyAt(c.UserContext(), rec.Data, at)
	resp := models.NewVerificationResponse(res, at)

	data := fiber.Map{
		"record":       rec,
		"verification": resp,
	}
	if res.Seal != nil {
		info := res.Seal.SealInfo
		data["header"] = info.Header
		data["property"] = info.Property
		data["picture"] = info.Picture
		data["certificates"] = len(info.Property.CertList)
		data["extensions"] = info.Extensions
	}

	return s.html.Render(c, "seal", data)
}

func (s *Server) lookupSeal(c *fiber.Ctx) (*models.SealRecord, error) {
	sealID := c.Params("id")
	rec, err := s.db.GetSeal(sealID)
	if err != nil {
		return nil, s.internalError(c, "Failed to retrieve seal from DB", err)
	}
	if rec == nil {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Seal not found",
		})
	}
	return rec, nil
}

// handleCreateSeal builds a seal with a server held credential and registers it
func (s *Server) handleCreateSeal(c *fiber.Ctx) error {
	if s.requests == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "No credential store configured",
		})
	}

	var req models.BuildSealRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	buildReq, signer, err := s.requests.New(&req)
	if err != nil {
		return s.buildError(c, err)
	}

	seal, err := s.builder.Build(c.UserContext(), *buildReq)
	if err != nil {
		return s.buildError(c, err)
	}

	encoded, err := seal.Encode()
	if err != nil {
		return s.buildError(c, err)
	}

	rec := models.NewSealRecord(seal, models.NewCertificateData(signer), encoded)
	if err := s.db.CreateSeal(rec); err != nil {
		if errors.Is(err, database.ErrDuplicateSealID) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Seal id already registered",
			})
		}
		return s.internalError(c, "Failed to store seal", err)
	}

	return c.Status(fiber.StatusCreated).JSON(rec)
}

func (s *Server) buildError(c *fiber.Ctx, err error) error {
	var serr *sealer.SigningError
	switch {
	case errors.Is(err, ses.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.As(err, &serr):
		slog.Warn("Seal signing failed", "algorithm", serr.Algorithm, "error", serr.Err)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		return s.internalError(c, "Failed to build seal", err)
	}
}

// handleListSeals lists the registered seals
func (s *Server) handleListSeals(c *fiber.Ctx) error {
	recs, err := s.db.ListSeals()
	if err != nil {
		return s.internalError(c, "Failed to list seals", err)
	}
	if recs == nil {
		recs = []models.SealRecord{}
	}
	return c.JSON(recs)
}

// handleDeleteSeal removes a seal from the registry
func (s *Server) handleDeleteSeal(c *fiber.Ctx) error {
	deleted, err := s.db.DeleteSeal(c.Params("id"))
	if err != nil {
		return s.internalError(c, "Failed to delete seal", err)
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Seal not found",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleListVerifications lists the logged verifications of a seal
func (s *Server) handleListVerifications(c *fiber.Ctx) error {
	list, err := s.db.ListVerifications(c.Params("id"))
	if err != nil {
		return s.internalError(c, "Failed to list verifications", err)
	}
	if list == nil {
		list = []models.VerificationRecord{}
	}
	return c.JSON(list)
}
