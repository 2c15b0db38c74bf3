package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"novatok-explorer/internal/domain"
	"novatok-explorer/internal/erc721"
	"novatok-explorer/internal/gallery"
	"novatok-explorer/internal/metadata"
)

type healthResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
	Uptime string `json:"uptime"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status: "ok",
		Mode:   s.svc.Info().Mode,
		Uptime: time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) config(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Info())
}

type galleryResponse struct {
	Owner string         `json:"owner"`
	Items []gallery.Item `json:"items"`
}

func (s *Server) ownerNFTs(c *gin.Context) {
	owner := c.Param("address")
	items, err := s.svc.Gallery(c.Request.Context(), owner)
	if err != nil {
		fail(c, err)
		return
	}
	if items == nil {
		items = []gallery.Item{}
	}
	c.JSON(http.StatusOK, galleryResponse{Owner: owner, Items: items})
}

type mintsResponse struct {
	Mints []*domain.MintRecord `json:"mints"`
}

func (s *Server) ownerMints(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	mints, err := s.svc.Mints(c.Request.Context(), c.Param("address"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	if mints == nil {
		mints = []*domain.MintRecord{}
	}
	c.JSON(http.StatusOK, mintsResponse{Mints: mints})
}

func (s *Server) mint(c *gin.Context) {
	var req gallery.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body: "+err.Error())
		return
	}

	res, err := s.svc.Mint(c.Request.Context(), req)
	if err != nil {
		if res != nil && errors.Is(err, erc721.ErrReverted) {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error:  err.Error(),
				Code:   codeReverted,
				TxHash: res.TxHash,
			})
			return
		}
		fail(c, err)
		return
	}

	status := http.StatusOK
	if res.Status == domain.MintStatusPending {
		status = http.StatusAccepted
	}
	c.JSON(status, res)
}

func (s *Server) mintStatus(c *gin.Context) {
	rec, err := s.svc.MintStatus(c.Request.Context(), c.Param("txHash"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type activityResponse struct {
	Events []activityEvent `json:"events"`
}

type activityEvent struct {
	Contract    string              `json:"contract"`
	TxHash      string              `json:"txHash"`
	LogIndex    uint32              `json:"logIndex"`
	BlockNumber uint64              `json:"blockNumber"`
	From        string              `json:"from"`
	To          string              `json:"to"`
	TokenID     string              `json:"tokenId"`
	Kind        domain.TransferKind `json:"kind"`
	ObservedAt  int64               `json:"observedAt"`
}

func toActivity(events []*domain.TransferEvent) activityResponse {
	out := activityResponse{Events: make([]activityEvent, 0, len(events))}
	for _, e := range events {
		out.Events = append(out.Events, activityEvent{
			Contract:    e.Contract,
			TxHash:      e.TxHash,
			LogIndex:    e.LogIndex,
			BlockNumber: e.BlockNumber,
			From:        e.From,
			To:          e.To,
			TokenID:     e.TokenID,
			Kind:        e.Kind(),
			ObservedAt:  e.ObservedAt,
		})
	}
	return out
}

func (s *Server) activity(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	events, err := s.svc.Activity(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toActivity(events))
}

func (s *Server) tokenTransfers(c *gin.Context) {
	events, err := s.svc.TokenHistory(c.Request.Context(), c.Param("tokenId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toActivity(events))
}

type encodeRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Image       string             `json:"image"`
	Attributes  []domain.Attribute `json:"attributes"`
}

type encodeResponse struct {
	TokenURI string               `json:"tokenUri"`
	Metadata domain.TokenMetadata `json:"metadata"`
}

func (s *Server) encodeMetadata(c *gin.Context) {
	var req encodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body: "+err.Error())
		return
	}

	f := metadata.Fields{
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		Attributes:  req.Attributes,
	}
	m := s.codec.Build(f)
	uri, err := s.codec.EncodeMetadata(m)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, encodeResponse{TokenURI: uri, Metadata: m})
}

type decodeRequest struct {
	TokenURI string `json:"tokenUri"`
}

type decodeResponse struct {
	Kind     string                `json:"kind"`
	Metadata *domain.TokenMetadata `json:"metadata"`
	Error    string                `json:"error,omitempty"`
}

// decodeMetadata never fetches: external URIs report kind "external"
// with null metadata.
func (s *Server) decodeMetadata(c *gin.Context) {
	var req decodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body: "+err.Error())
		return
	}

	resp := decodeResponse{Kind: metadata.Classify(req.TokenURI).String()}
	m, err := s.codec.Parse(req.TokenURI)
	if err != nil {
		resp.Error = err.Error()
	}
	resp.Metadata = m
	c.JSON(http.StatusOK, resp)
}

// queryLimit parses ?limit=. It writes a 400 and returns false when invalid.
// Zero means the service default.
func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(c, http.StatusBadRequest, codeInvalidRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}
