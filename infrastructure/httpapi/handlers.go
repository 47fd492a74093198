package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ahrav/go-scrutin/infrastructure/csvballot"
	"github.com/ahrav/go-scrutin/internal/application"
	"github.com/ahrav/go-scrutin/internal/display"
	"github.com/ahrav/go-scrutin/internal/domain"
	"github.com/ahrav/go-scrutin/internal/ports"
)

const (
	msgNoFile           = "Aucun fichier fourni. Utilisez le paramètre 'file' pour envoyer le fichier CSV."
	msgNotCSV           = "Le fichier doit être au format CSV (.csv)"
	msgTooLarge         = "Le fichier est trop volumineux. Taille maximum autorisée : %s"
	msgBadScale         = "Échelle inconnue : utilisez 5, 6 ou auto."
	msgFormatPrefix     = "Erreur de format CSV : "
	msgInternalPrefix   = "Erreur interne : "
	msgNoData           = "Paramètre 'data' manquant."
	msgDecodePrefix     = "Résultat illisible : "
	msgRateLimited      = "Trop de requêtes. Réessayez dans quelques instants."
	msgGetNotAllowed    = "Envoyer un fichier CSV (paramètre `file` au format `FormData`) via une requête POST."
	msgPutNotAllowed    = "Méthode PUT non supportée. Utilisez POST pour envoyer un fichier CSV."
	msgDeleteNotAllowed = "Méthode DELETE non supportée. Utilisez POST pour envoyer un fichier CSV."
)

// multipartOverhead leaves room for the multipart envelope around the file.
const multipartOverhead = 64 << 10

// Response is the envelope of every /api answer.
type Response struct {
	Success bool                  `json:"success"`
	Result  string                `json:"result,omitempty"`
	Token   string                `json:"token,omitempty"`
	Data    *domain.ScrutinResult `json:"data,omitempty"`
	Error   string                `json:"error,omitempty"`
	Detail  *ErrorDetail          `json:"detail,omitempty"`
}

// ErrorDetail locates a rejected ballot table or token.
type ErrorDetail struct {
	Reason        string   `json:"reason"`
	Row           int      `json:"row,omitempty"`
	Column        *int     `json:"column,omitempty"`
	Choice        string   `json:"choice,omitempty"`
	Value         string   `json:"value,omitempty"`
	Expected      int      `json:"expected,omitempty"`
	Actual        int      `json:"actual,omitempty"`
	ValidMentions []string `json:"valid_mentions,omitempty"`
	Suggestion    string   `json:"suggestion,omitempty"`
	Segment       *int     `json:"segment,omitempty"`
	Field         string   `json:"field,omitempty"`
}

func detailOf(err error) *ErrorDetail {
	var formatErr *domain.FormatError
	if errors.As(err, &formatErr) {
		d := &ErrorDetail{
			Reason:        formatErr.Err.Error(),
			Row:           formatErr.Row,
			Choice:        formatErr.Choice,
			Value:         formatErr.Value,
			Expected:      formatErr.Expected,
			Actual:        formatErr.Actual,
			ValidMentions: formatErr.ValidMentions,
			Suggestion:    formatErr.Suggestion,
		}
		if formatErr.Column >= 0 {
			col := formatErr.Column
			d.Column = &col
		}
		return d
	}
	var decodeErr *domain.DecodeError
	if errors.As(err, &decodeErr) {
		seg := decodeErr.Segment
		return &ErrorDetail{
			Reason:  decodeErr.Err.Error(),
			Segment: &seg,
			Field:   decodeErr.Field,
			Value:   decodeErr.Value,
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func fail(w http.ResponseWriter, status int, msg string, detail *ErrorDetail) {
	writeJSON(w, status, Response{Success: false, Error: msg, Detail: detail})
}

func methodNotAllowed(msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", http.MethodPost)
		fail(w, http.StatusMethodNotAllowed, msg, nil)
	}
}

// parseScale maps the optional "scale" form field to a declared scale
// size. Uploads default to the five mention scale.
func parseScale(raw string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "5", "five":
		return domain.FiveMentions, true
	case "6", "six":
		return domain.SixMentions, true
	case "0", "auto":
		return 0, true
	default:
		return 0, false
	}
}

func uploadKey(declared int, data []byte) string {
	h := sha256.New()
	h.Write([]byte(strconv.Itoa(declared)))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func humanSize(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return strconv.FormatInt(n>>20, 10) + "MB"
	}
	if n >= 1<<10 && n%(1<<10) == 0 {
		return strconv.FormatInt(n>>10, 10) + "KB"
	}
	return strconv.FormatInt(n, 10) + " octets"
}

// Upload failures that are neither a size nor a media type problem.
var (
	errNoFile     = errors.New("no file field")
	errBadScale   = errors.New("unknown scale")
	errUnreadable = errors.New("unreadable upload")
)

// writeError answers a failed /api request with the status its cause
// calls for.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var formatErr *domain.FormatError
	var parseErr *csv.ParseError
	switch {
	case errors.Is(err, ports.ErrRateLimited):
		w.Header().Set("Retry-After", "1")
		fail(w, http.StatusTooManyRequests, msgRateLimited, nil)
	case errors.Is(err, ports.ErrPayloadTooLarge):
		fail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf(msgTooLarge, humanSize(s.cfg.MaxUploadBytes)), nil)
	case errors.Is(err, ports.ErrUnsupportedMedia):
		fail(w, http.StatusUnsupportedMediaType, msgNotCSV, nil)
	case errors.Is(err, errNoFile):
		fail(w, http.StatusBadRequest, msgNoFile, nil)
	case errors.Is(err, errBadScale):
		fail(w, http.StatusBadRequest, msgBadScale, nil)
	case errors.Is(err, errUnreadable), errors.As(err, &parseErr):
		fail(w, http.StatusBadRequest, msgFormatPrefix+err.Error(), nil)
	case errors.As(err, &formatErr):
		fail(w, http.StatusBadRequest, msgFormatPrefix+err.Error(), detailOf(err))
	default:
		s.logger.Error("upload failed", "error", err)
		fail(w, http.StatusInternalServerError, msgInternalPrefix+err.Error(), nil)
	}
}

// upload is a ballot file received on /api.
type upload struct {
	name     string
	declared int
	data     []byte
}

// readUpload extracts the ballot file and the declared scale from r.
// Oversized files fail with ports.ErrPayloadTooLarge and files without
// the .csv extension with ports.ErrUnsupportedMedia.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	limit := s.cfg.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("request body over %d bytes: %w", maxErr.Limit, ports.ErrPayloadTooLarge)
		}
		return nil, fmt.Errorf("%w: %v", errNoFile, err)
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		return nil, fmt.Errorf("file %q: %w", header.Filename, ports.ErrUnsupportedMedia)
	}
	if header.Size > limit {
		return nil, fmt.Errorf("file of %d bytes: %w", header.Size, ports.ErrPayloadTooLarge)
	}

	declared, ok := parseScale(r.FormValue("scale"))
	if !ok {
		return nil, fmt.Errorf("%w %q", errBadScale, r.FormValue("scale"))
	}

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUnreadable, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file over %d bytes: %w", limit, ports.ErrPayloadTooLarge)
	}
	return &upload{name: header.Filename, declared: declared, data: data}, nil
}

// handleUpload handles POST /api.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.logger.Debug("upload refused", "error", err)
		s.writeError(w, err)
		return
	}

	// Identical concurrent uploads share one tabulation. The shared work
	// must not die with the first caller's request.
	ctx := context.WithoutCancel(r.Context())
	v, err, _ := s.uploads.Do(uploadKey(up.declared, up.data), func() (any, error) {
		rows, err := csvballot.ReadRows(ctx, up.data, 0)
		if err != nil {
			return nil, err
		}
		return s.svc.Tabulate(ctx, rows, up.declared, "upload:"+up.name)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	tab := v.(*application.Tabulation)
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Result:  display.ShareURL(s.cfg.BaseURL, tab.Token),
		Token:   tab.Token,
		Data:    tab.Result,
	})
}

func (s *Server) open(w http.ResponseWriter, r *http.Request) (string, *domain.ScrutinResult, bool) {
	token := r.URL.Query().Get("data")
	if token == "" {
		fail(w, http.StatusBadRequest, msgNoData, nil)
		return "", nil, false
	}
	result, err := s.svc.Open(token)
	if err != nil {
		fail(w, http.StatusBadRequest, msgDecodePrefix+err.Error(), detailOf(err))
		return "", nil, false
	}
	return token, result, true
}

// handleResult handles GET /result.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	token, result, ok := s.open(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, display.NewView(result, token, s.cfg.BaseURL, r.URL.Query()))
}

// handleEmbed handles GET /embed.
func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	token, _, ok := s.open(w, r)
	if !ok {
		return
	}
	code := display.EmbedCode(display.EmbedURL(s.cfg.BaseURL, token, display.ParseThreshold(r.URL.Query())))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, code)
}
