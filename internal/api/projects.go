package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ammar1510/gigchat/internal/database"
	"github.com/ammar1510/gigchat/internal/models"
)

// ProjectHandler handles project and bid routes
type ProjectHandler struct {
	DB database.Store
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(db database.Store) *ProjectHandler {
	return &ProjectHandler{DB: db}
}

// GetProject returns one project with its owner embedded
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, err := h.DB.GetProject(c.Param("id"))
	if errors.Is(err, database.ErrProjectNotFound) {
		fail(c, http.StatusNotFound, "Project not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to retrieve project")
		return
	}

	project.Owner = userRef(h.DB, project.Owner.ID)
	respond(c, http.StatusOK, project)
}

// CreateProject posts a project owned by the caller
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var input models.ProjectInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.DB.CreateProject(c.GetString("userID"), input)
	if err != nil {
		log.Error("Failed to create project: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to create project")
		return
	}

	respond(c, http.StatusCreated, project)
}

// GetProjectBids lists the bids on a project with freelancers embedded
func (h *ProjectHandler) GetProjectBids(c *gin.Context) {
	bids, err := h.DB.GetBidsByProject(c.Param("id"))
	if errors.Is(err, database.ErrProjectNotFound) {
		fail(c, http.StatusNotFound, "Project not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to retrieve bids")
		return
	}

	for _, bid := range bids {
		bid.Freelancer = userRef(h.DB, bid.Freelancer.ID)
	}
	respond(c, http.StatusOK, bids)
}

// CreateBid places a bid from the caller
func (h *ProjectHandler) CreateBid(c *gin.Context) {
	var input models.BidInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	userID := c.GetString("userID")
	project, err := h.DB.GetProject(input.ProjectID)
	if errors.Is(err, database.ErrProjectNotFound) {
		fail(c, http.StatusNotFound, "Project not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to retrieve project")
		return
	}
	if project.Owner.ID == userID {
		fail(c, http.StatusBadRequest, "Cannot bid on your own project")
		return
	}

	bid, err := h.DB.CreateBid(userID, input)
	if err != nil {
		log.Error("Failed to create bid on %s: %v", input.ProjectID, err)
		fail(c, http.StatusInternalServerError, "Failed to create bid")
		return
	}

	respond(c, http.StatusCreated, bid)
}

// AcceptBid accepts a bid on one of the caller's projects
func (h *ProjectHandler) AcceptBid(c *gin.Context) {
	bid, err := h.DB.AcceptBid(c.Param("id"), c.GetString("userID"))
	switch {
	case errors.Is(err, database.ErrBidNotFound):
		fail(c, http.StatusNotFound, "Bid not found")
		return
	case errors.Is(err, database.ErrNotProjectOwner):
		fail(c, http.StatusForbidden, "Only the project owner can accept bids")
		return
	case errors.Is(err, database.ErrBidClosed):
		fail(c, http.StatusConflict, "Bid is no longer pending")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "Failed to accept bid")
		return
	}

	respond(c, http.StatusOK, bid)
}
