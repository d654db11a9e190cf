package handler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"qrattend/internal/metrics"
	"qrattend/internal/staff"
)

const (
	flashMissingFields = "Please provide name, department and an image."
	flashInvalidImage  = "The uploaded image could not be read. Please try another picture."
	flashImageTooLarge = "The uploaded image is too large."
)

type flash struct {
	Category string
	Message  string
}

type registerPage struct {
	Flash      *flash
	Name       string
	Department string
}

type successPage struct {
	Name       string
	Department string
	UserID     string
	QRURL      string
	PhotoURL   string
}

type registerForm struct {
	Name       string `form:"name" binding:"required,notblank"`
	Department string `form:"department" binding:"required,notblank"`
}

// RegisterPage renders the empty registration form.
func (h *Handler) RegisterPage(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", registerPage{})
}

// Register handles the multipart registration form: name, department and
// an image file.
func (h *Handler) Register(c *gin.Context) {
	// form fields ride along with the image
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+1<<20)

	var form registerForm
	bindErr := c.ShouldBind(&form)
	page := registerPage{Name: c.PostForm("name"), Department: c.PostForm("department")}

	file, _, fileErr := c.Request.FormFile("image")
	if bindErr != nil || fileErr != nil {
		h.rejectRegistration(c, http.StatusBadRequest, page, flashMissingFields)
		return
	}
	defer file.Close()

	photo, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		h.rejectRegistration(c, http.StatusBadRequest, page, flashMissingFields)
		return
	}
	if int64(len(photo)) > h.maxUpload {
		h.rejectRegistration(c, http.StatusRequestEntityTooLarge, page, flashImageTooLarge)
		return
	}

	reg, err := h.staff.Register(c.Request.Context(), staff.Registration{
		Name:       form.Name,
		Department: form.Department,
		Photo:      photo,
	})
	switch {
	case errors.Is(err, staff.ErrMissingField):
		h.rejectRegistration(c, http.StatusBadRequest, page, flashMissingFields)
		return
	case errors.Is(err, staff.ErrInvalidPhoto):
		h.rejectRegistration(c, http.StatusBadRequest, page, flashInvalidImage)
		return
	case err != nil:
		log.Printf("registration failed: %v", err)
		metrics.Registrations.WithLabelValues("error").Inc()
		c.String(http.StatusInternalServerError, "❌ Error saving to database: %v", err)
		return
	}

	metrics.Registrations.WithLabelValues("ok").Inc()
	c.HTML(http.StatusOK, "success.html", successPage{
		Name:       reg.Staff.Name,
		Department: reg.Staff.Department,
		UserID:     reg.Staff.UserID,
		QRURL:      reg.QRURL,
		PhotoURL:   reg.PhotoURL,
	})
}

func (h *Handler) rejectRegistration(c *gin.Context, status int, page registerPage, msg string) {
	metrics.Registrations.WithLabelValues("invalid").Inc()
	page.Flash = &flash{Category: "danger", Message: msg}
	c.HTML(status, "register.html", page)
}
