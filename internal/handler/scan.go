package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"qrattend/internal/attendance"
)

type scanPage struct {
	Flash   *flash
	Records []attendance.Entry
}

type tablePage struct {
	Records []attendance.Entry
}

// ---------- JSON scan endpoint ----------

// MarkAttendance records a camera scan sent as {"qr_data": "<id>"} or
// {"staff_id": "<id>"} and answers with {"message": ...}.
func (h *Handler) MarkAttendance(c *gin.Context) {
	body, ok := decodeScanBody(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "❌ Invalid request — expected JSON body."})
		return
	}

	res, err := h.scans.Scan(c.Request.Context(), scanID(body), attendance.SourceCamera)
	switch {
	case errors.Is(err, attendance.ErrNoStaffID):
		c.JSON(http.StatusBadRequest, gin.H{"message": "❌ No QR data provided"})
		return
	case errors.Is(err, attendance.ErrStaffNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "❌ User not found"})
		return
	case err != nil:
		log.Printf("mark attendance failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": fmt.Sprintf("❌ Error recording attendance: %v", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": scanMessage(res)})
}

func scanMessage(res attendance.Result) string {
	name := res.Staff.Name
	switch res.Outcome {
	case attendance.OutcomeCheckedIn:
		return fmt.Sprintf("✅ %s signed in at %s on %s", name, res.At.Format("15:04:05"), res.Weekday)
	case attendance.OutcomeCheckedOut:
		return fmt.Sprintf("✅ %s signed out at %s on %s", name, res.At.Format("15:04:05"), res.Weekday)
	case attendance.OutcomeDebounced:
		return fmt.Sprintf("⚠️ %s was just scanned, please wait a moment", name)
	default:
		return fmt.Sprintf("⚠️ %s already signed in and out today", name)
	}
}

// decodeScanBody reads a non-empty JSON object. Numbers are kept as
// written so that numeric ids survive stringification.
func decodeScanBody(c *gin.Context) (map[string]any, bool) {
	if c.ContentType() != binding.MIMEJSON || c.Request.Body == nil {
		return nil, false
	}
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil || len(body) == 0 {
		return nil, false
	}
	return body, true
}

// scanID picks the first present value of qr_data or staff_id, the way a
// kiosk or a hand-typed form sends it.
func scanID(body map[string]any) string {
	for _, key := range []string{"qr_data", "staff_id"} {
		if v, ok := body[key]; ok && present(v) {
			if s, ok := v.(string); ok {
				return s
			}
			return fmt.Sprint(v)
		}
	}
	return ""
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// ---------- Pages ----------

// ScanPage renders the scan form with the attendance table. A POST with a
// JSON or form staff_id records the scan first and flashes the outcome.
func (h *Handler) ScanPage(c *gin.Context) {
	var page scanPage
	if c.Request.Method == http.MethodPost {
		page.Flash = h.scanForm(c)
	}

	records, err := h.scans.List(c.Request.Context())
	if err != nil {
		log.Printf("load attendance table failed: %v", err)
		c.String(http.StatusInternalServerError, "❌ Error loading table: %v", err)
		return
	}
	page.Records = records
	c.HTML(http.StatusOK, "scan.html", page)
}

func (h *Handler) scanForm(c *gin.Context) *flash {
	var id string
	source := attendance.SourceForm
	if c.ContentType() == binding.MIMEJSON {
		source = attendance.SourceCamera
		if body, ok := decodeScanBody(c); ok {
			id = scanID(body)
		}
	} else {
		id = c.PostForm("staff_id")
	}
	if strings.TrimSpace(id) == "" {
		return nil
	}

	res, err := h.scans.Scan(c.Request.Context(), id, source)
	switch {
	case errors.Is(err, attendance.ErrStaffNotFound):
		return &flash{Category: "danger", Message: "❌ Staff not registered."}
	case err != nil:
		log.Printf("scan failed: %v", err)
		return &flash{Category: "danger", Message: fmt.Sprintf("❌ Error recording attendance: %v", err)}
	}
	switch res.Outcome {
	case attendance.OutcomeCheckedIn:
		return &flash{Category: "success", Message: "✅ Check-in recorded successfully!"}
	case attendance.OutcomeCheckedOut:
		return &flash{Category: "success", Message: "✅ Check-out recorded successfully!"}
	case attendance.OutcomeDebounced:
		return &flash{Category: "warning", Message: "⚠️ Scan ignored, please wait before scanning again."}
	default:
		return &flash{Category: "warning", Message: "⚠️ Already checked in and out today."}
	}
}

// Table renders the read-only attendance listing.
func (h *Handler) Table(c *gin.Context) {
	records, err := h.scans.List(c.Request.Context())
	if err != nil {
		log.Printf("load attendance table failed: %v", err)
		c.String(http.StatusInternalServerError, "❌ Error loading table: %v", err)
		return
	}
	c.HTML(http.StatusOK, "table.html", tablePage{Records: records})
}
