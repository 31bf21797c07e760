package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/signintech/gopdf"

	"github.com/scof256/hellodoctor-sub006/internal/intake"
)

type TelegramClient interface {
	SendMessage(chatID int64, text string) error
	SendDocument(chatID int64, fileData []byte, fileName string) error
}

type Service struct {
	tgClient     TelegramClient
	clinicChatID int64
}

func NewService(tg TelegramClient, clinicChatID int64) *Service {
	return &Service{
		tgClient:     tg,
		clinicChatID: clinicChatID,
	}
}

// SendHandoverReport renders the SBAR clinical handover as a PDF and sends
// it to the clinic chat. Called fire-and-forget after an intake reaches
// ready with a handover note present.
func (s *Service) SendHandoverReport(ctx context.Context, session intake.IntakeSession) error {
	if session.ClinicalHandover == nil {
		return fmt.Errorf("session %s has no clinical handover", session.ID)
	}

	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	// Try multiple common font paths for Alpine Linux
	fontPaths := []string{
		"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	}

	var fontErr error
	fontLoaded := false
	for _, path := range fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return fmt.Errorf("failed to load font for PDF. Please ensure ttf-dejavu is installed. Last error: %w", fontErr)
	}

	if err := pdf.SetFont("DejaVu", "", 20); err != nil {
		return err
	}
	pdf.Cell(nil, "Clinical Handover Report")
	pdf.Br(30)

	if err := pdf.SetFont("DejaVu", "", 12); err != nil {
		return err
	}
	pdf.Cell(nil, fmt.Sprintf("Date: %s", time.Now().Format("02.01.2006 15:04")))
	pdf.Br(15)
	pdf.Cell(nil, fmt.Sprintf("Session: %s", session.ID))
	pdf.Br(15)
	pdf.Cell(nil, fmt.Sprintf("Completeness: %d%%", session.Completeness))
	pdf.Br(15)
	pdf.Cell(nil, fmt.Sprintf("Triage: %s", session.MedicalData.Vitals.TriageDecision))
	if reason := session.MedicalData.Vitals.TriageReason; reason != "" {
		pdf.Br(15)
		writeWrapped(&pdf, "Triage reason: "+reason)
	}
	pdf.Br(25)

	sbar := session.ClinicalHandover
	for _, section := range []struct {
		title string
		body  string
	}{
		{"Situation", sbar.Situation},
		{"Background", sbar.Background},
		{"Assessment", sbar.Assessment},
		{"Recommendation", sbar.Recommendation},
	} {
		if err := pdf.SetFont("DejaVu", "", 14); err != nil {
			return err
		}
		pdf.Cell(nil, section.title+":")
		pdf.Br(15)
		if err := pdf.SetFont("DejaVu", "", 11); err != nil {
			return err
		}
		body := section.body
		if strings.TrimSpace(body) == "" {
			body = "- Not documented."
		}
		writeWrapped(&pdf, body)
		pdf.Br(12)
	}

	if dt := session.DoctorThought; dt != nil && len(dt.Differential) > 0 {
		if err := pdf.SetFont("DejaVu", "", 14); err != nil {
			return err
		}
		pdf.Cell(nil, "Differential diagnosis:")
		pdf.Br(15)
		if err := pdf.SetFont("DejaVu", "", 11); err != nil {
			return err
		}
		for _, d := range dt.Differential {
			writeWrapped(&pdf, fmt.Sprintf("- %s (%s): %s", d.Condition, d.Probability, d.Reasoning))
			pdf.Br(5)
		}
		pdf.Br(10)
	}

	if len(session.MedicalData.UCGRecommendations) > 0 {
		if err := pdf.SetFont("DejaVu", "", 14); err != nil {
			return err
		}
		pdf.Cell(nil, "Guideline recommendations:")
		pdf.Br(15)
		if err := pdf.SetFont("DejaVu", "", 11); err != nil {
			return err
		}
		for _, rec := range session.MedicalData.UCGRecommendations {
			writeWrapped(&pdf, "- "+rec)
			pdf.Br(5)
		}
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}

	fileName := fmt.Sprintf("handover_%s.pdf", session.ID.String())
	if err := s.tgClient.SendDocument(s.clinicChatID, buf.Bytes(), fileName); err != nil {
		return err
	}
	return nil
}

func writeWrapped(pdf *gopdf.GoPdf, text string) {
	lines, _ := pdf.SplitText(text, 500)
	for _, l := range lines {
		pdf.Cell(nil, l)
		pdf.Br(12)
	}
}
