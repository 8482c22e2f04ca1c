package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/emrgen/rard/internal/model"
	"github.com/emrgen/rard/internal/reconcile"
	"github.com/emrgen/rard/internal/service"
	"github.com/emrgen/rard/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type handler struct {
	svc *service.CatalogueService
}

func registerRoutes(r *gin.RouterGroup, h *handler) {
	r.GET("/antiquarians", h.listAntiquarians)
	r.POST("/antiquarians", h.createAntiquarian)
	r.GET("/antiquarians/:id", h.getAntiquarian)
	r.DELETE("/antiquarians/:id", h.deleteAntiquarian)
	r.GET("/antiquarians/:id/works", h.listAntiquarianWorks)
	r.POST("/antiquarians/:id/works/:work_id", h.addWork)
	r.DELETE("/antiquarians/:id/works/:work_id", h.removeWork)
	r.PUT("/antiquarians/:id/works/:work_id/position", h.moveWork)
	r.GET("/antiquarians/:id/links/:kind", h.listAntiquarianLinks)
	r.PUT("/antiquarians/:id/evidence/:kind", h.setAntiquarianEvidence)
	r.GET("/unattributed/:kind", h.listUnattributedLinks)

	r.POST("/works", h.createWork)
	r.GET("/works/:id", h.getWork)
	r.DELETE("/works/:id", h.deleteWork)
	r.GET("/works/:id/books", h.listBooks)
	r.GET("/works/:id/links/:kind", h.listWorkLinks)

	r.POST("/books", h.createBook)
	r.PUT("/books/:id/position", h.moveBook)
	r.DELETE("/books/:id", h.deleteBook)
	r.GET("/books/:id/links/:kind", h.listBookLinks)

	r.POST("/evidence", h.createEvidence)
	r.GET("/evidence/:kind", h.listEvidence)
	r.DELETE("/evidence/:kind/:id", h.deleteEvidence)
	r.GET("/evidence/:kind/:id/attributions", h.attributions)
	r.PUT("/evidence/:kind/:id/antiquarians", h.setEvidenceAntiquarians)

	r.POST("/links", h.createLink)
	r.PUT("/links/:id", h.updateLink)
	r.DELETE("/links/:kind/:id", h.deleteLink)
	r.POST("/links/move", h.moveLink)

	r.POST("/reconcile", h.reconcile)
	r.GET("/check", h.check)
}

type positionRequest struct {
	Position int `json:"position"`
}

type idsRequest struct {
	IDs []uint `json:"ids"`
}

// writeError maps service errors to status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case service.IsValidationError(err):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, reconcile.ErrPlaceholder), errors.Is(err, reconcile.ErrNotInScope):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		logrus.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, errors.New("invalid "+name))
		return 0, false
	}
	return uint(id), true
}

func kindParam(c *gin.Context) (model.EvidenceKind, bool) {
	kind, err := model.ParseKind(c.Param("kind"))
	if err != nil {
		badRequest(c, err)
		return "", false
	}
	return kind, true
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, err)
		return false
	}
	return true
}

func (h *handler) listAntiquarians(c *gin.Context) {
	antiquarians, err := h.svc.ListAntiquarians(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, antiquarians)
}

func (h *handler) createAntiquarian(c *gin.Context) {
	var req service.CreateAntiquarianRequest
	if !bind(c, &req) {
		return
	}
	antiquarian, err := h.svc.CreateAntiquarian(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, antiquarian)
}

func (h *handler) getAntiquarian(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	antiquarian, err := h.svc.GetAntiquarian(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, antiquarian)
}

func (h *handler) deleteAntiquarian(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteAntiquarian(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) listAntiquarianWorks(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	works, err := h.svc.ListAntiquarianWorks(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, works)
}

func (h *handler) addWork(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	workID, ok := idParam(c, "work_id")
	if !ok {
		return
	}
	if err := h.svc.AddWork(c.Request.Context(), id, workID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) removeWork(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	workID, ok := idParam(c, "work_id")
	if !ok {
		return
	}
	if err := h.svc.RemoveWork(c.Request.Context(), id, workID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) moveWork(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	workID, ok := idParam(c, "work_id")
	if !ok {
		return
	}
	var req positionRequest
	if !bind(c, &req) {
		return
	}
	if err := h.svc.MoveWork(c.Request.Context(), id, workID, req.Position); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) listAntiquarianLinks(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	links, err := h.svc.ListAntiquarianLinks(c.Request.Context(), kind, &id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

func (h *handler) setAntiquarianEvidence(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req idsRequest
	if !bind(c, &req) {
		return
	}
	if err := h.svc.SetAntiquarianEvidence(c.Request.Context(), kind, id, req.IDs); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) listUnattributedLinks(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	links, err := h.svc.ListAntiquarianLinks(c.Request.Context(), kind, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

func (h *handler) createWork(c *gin.Context) {
	var req service.CreateWorkRequest
	if !bind(c, &req) {
		return
	}
	work, err := h.svc.CreateWork(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, work)
}

func (h *handler) getWork(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	work, err := h.svc.GetWork(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, work)
}

func (h *handler) deleteWork(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteWork(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) listBooks(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	books, err := h.svc.ListBooks(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h *handler) listWorkLinks(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	links, err := h.svc.ListWorkLinks(c.Request.Context(), kind, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

func (h *handler) createBook(c *gin.Context) {
	var req service.CreateBookRequest
	if !bind(c, &req) {
		return
	}
	book, err := h.svc.CreateBook(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

func (h *handler) moveBook(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req positionRequest
	if !bind(c, &req) {
		return
	}
	if err := h.svc.MoveBook(c.Request.Context(), id, req.Position); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) deleteBook(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteBook(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) listBookLinks(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	links, err := h.svc.ListBookLinks(c.Request.Context(), kind, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

func (h *handler) createEvidence(c *gin.Context) {
	var req service.CreateEvidenceRequest
	if !bind(c, &req) {
		return
	}
	evidence, err := h.svc.CreateEvidence(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, evidence)
}

func (h *handler) listEvidence(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	evidence, err := h.svc.ListEvidence(c.Request.Context(), kind)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, evidence)
}

func evidenceRef(c *gin.Context) (model.EvidenceRef, bool) {
	kind, ok := kindParam(c)
	if !ok {
		return model.EvidenceRef{}, false
	}
	id, ok := idParam(c, "id")
	if !ok {
		return model.EvidenceRef{}, false
	}
	return model.EvidenceRef{Kind: kind, ID: id}, true
}

func (h *handler) deleteEvidence(c *gin.Context) {
	ref, ok := evidenceRef(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteEvidence(c.Request.Context(), ref); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) attributions(c *gin.Context) {
	ref, ok := evidenceRef(c)
	if !ok {
		return
	}
	attribution, err := h.svc.Attributions(c.Request.Context(), ref)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, attribution)
}

func (h *handler) setEvidenceAntiquarians(c *gin.Context) {
	ref, ok := evidenceRef(c)
	if !ok {
		return
	}
	var req idsRequest
	if !bind(c, &req) {
		return
	}
	if err := h.svc.SetEvidenceAntiquarians(c.Request.Context(), ref, req.IDs); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) createLink(c *gin.Context) {
	var req service.LinkRequest
	if !bind(c, &req) {
		return
	}
	link, err := h.svc.CreateLink(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

func (h *handler) updateLink(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req service.LinkRequest
	if !bind(c, &req) {
		return
	}
	link, err := h.svc.UpdateLink(c.Request.Context(), id, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

func (h *handler) deleteLink(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteLink(c.Request.Context(), kind, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) moveLink(c *gin.Context) {
	var req service.MoveLinkRequest
	if !bind(c, &req) {
		return
	}
	if err := h.svc.MoveLink(c.Request.Context(), &req); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) reconcile(c *gin.Context) {
	writes, err := h.svc.Reconcile(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"writes": writes})
}

func (h *handler) check(c *gin.Context) {
	violations, err := h.svc.Check(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if violations == nil {
		violations = []reconcile.Violation{}
	}
	c.JSON(http.StatusOK, gin.H{"violations": violations})
}
