package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"telephony-relay/internal/contacts"
	"telephony-relay/internal/dispatch"
	"telephony-relay/internal/settings"
	"telephony-relay/pkg/logger"
)

func (h Handlers) ListContacts(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	page, err := h.Contacts.List(c.Request.Context(), owner, contacts.ListFilter{
		Search:        c.Query("search"),
		FavoritesOnly: c.Query("filter") == "favorites",
		Page:          queryInt(c, "page"),
	})
	if err != nil {
		internalError(c, "contact listing failed", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h Handlers) CreateContact(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	var in contacts.Input
	if !bindJSON(c, &in) {
		return
	}
	ct, err := h.Contacts.Create(c.Request.Context(), owner, in)
	if err != nil {
		contactError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Contact created successfully.", "data": ct.View()})
}

func (h Handlers) GetContact(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	ct, err := h.Contacts.Get(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		contactError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ct.View()})
}

func (h Handlers) UpdateContact(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	var in contacts.Input
	if !bindJSON(c, &in) {
		return
	}
	ct, err := h.Contacts.Update(c.Request.Context(), owner, c.Param("id"), in)
	if err != nil {
		contactError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Contact updated successfully.", "data": ct.View()})
}

func (h Handlers) DeleteContact(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	if err := h.Contacts.Delete(c.Request.Context(), owner, c.Param("id")); err != nil {
		contactError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Contact deleted successfully."})
}

func (h Handlers) ToggleFavorite(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	fav, err := h.Contacts.ToggleFavorite(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		contactError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_favorite": fav})
}

// CallContact queues an outbound call and returns before it is placed.
func (h Handlers) CallContact(c *gin.Context) {
	owner, ct, ok := h.outboundTarget(c)
	if !ok {
		return
	}
	in := dispatch.NewCallIntent(owner, contactRef(ct), time.Now())
	if !h.enqueue(c, in) {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Call to " + ct.Name + " has been initiated.", "intent_id": in.ID})
}

type smsRequest struct {
	Message string `json:"message" binding:"required,max=1600"`
}

// SMSContact queues an outbound message and returns before it is sent.
func (h Handlers) SMSContact(c *gin.Context) {
	var req smsRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		validationFailed(c, map[string]string{"message": "The message field is required."})
		return
	}

	owner, ct, ok := h.outboundTarget(c)
	if !ok {
		return
	}
	in := dispatch.NewSMSIntent(owner, contactRef(ct), req.Message, time.Now())
	if !h.enqueue(c, in) {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "SMS to " + ct.Name + " has been queued.", "intent_id": in.ID})
}

// outboundTarget loads the contact and checks the caller has a line to send from.
func (h Handlers) outboundTarget(c *gin.Context) (string, contacts.Contact, bool) {
	owner, ok := ownerID(c)
	if !ok {
		return "", contacts.Contact{}, false
	}
	ctx := c.Request.Context()
	ct, err := h.Contacts.Get(ctx, owner, c.Param("id"))
	if err != nil {
		contactError(c, err)
		return "", contacts.Contact{}, false
	}
	cfg, err := h.Settings.Get(ctx, owner)
	if err != nil && !errors.Is(err, settings.ErrNotFound) {
		internalError(c, "settings lookup failed", err)
		return "", contacts.Contact{}, false
	}
	if err != nil || cfg.InboundNumber == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Telephony is not configured. Please configure your settings first."})
		return "", contacts.Contact{}, false
	}
	return owner, ct, true
}

func (h Handlers) enqueue(c *gin.Context, in dispatch.Intent) bool {
	if h.Intents == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "dispatch unavailable"})
		return false
	}
	if err := h.Intents.Enqueue(c.Request.Context(), in); err != nil {
		internalError(c, "dispatch enqueue failed", err)
		return false
	}
	logger.FromGin(c).Info("intent queued",
		zap.String("intent_id", in.ID),
		zap.String("kind", string(in.Kind)),
		zap.String("contact_id", in.Contact.ID),
	)
	return true
}

func contactRef(ct contacts.Contact) dispatch.ContactRef {
	return dispatch.ContactRef{ID: ct.ID, Name: ct.Name, PhoneNumber: ct.PhoneNumber}
}

func contactError(c *gin.Context, err error) {
	var fields map[string]string
	switch {
	case isValidation(err, &fields):
		validationFailed(c, fields)
	case errors.Is(err, contacts.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "contact not found"})
	case errors.Is(err, contacts.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		internalError(c, "contact operation failed", err)
	}
}
