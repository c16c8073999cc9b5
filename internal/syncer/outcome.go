package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// OutcomeError es la porción de error de un outcome terminal. Message es
// genérico para 5xx; Details solo lleva estructura segura para 4xx.
type OutcomeError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"error_details,omitempty"`
}

// SyncOutcome es el payload terminal: se persiste en el ledger de
// idempotencia y se devuelve al caller, idéntico en ambos lados salvo
// el flag IdempotentReplay.
type SyncOutcome struct {
	Success          bool              `json:"success"`
	IdempotentReplay bool              `json:"idempotent_replay"`
	RequestID        string            `json:"request_id"`
	SyncedSlugs      []string          `json:"synced_slugs,omitempty"`
	PayloadHash      string            `json:"payload_hash,omitempty"`
	PatchChecksum    string            `json:"patch_checksum,omitempty"`
	DryRun           bool              `json:"dry_run,omitempty"`
	ManagementStatus int               `json:"management_status,omitempty"`
	PatchPreview     map[string]string `json:"patch_preview,omitempty"`
	Error            *OutcomeError     `json:"error,omitempty"`
}

// PayloadHash es el hash determinístico de la intención del request:
// actor + slugs normalizados + dry_run. Dos requests con la misma key
// y hash distinto son un conflicto, nunca un replay.
func PayloadHash(actorID string, slugs []string, dryRun bool) string {
	sorted := append([]string(nil), slugs...)
	sort.Strings(sorted)
	h := sha256.New()
	h.Write([]byte(actorID))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(dryRun)))
	return hex.EncodeToString(h.Sum(nil))
}

// PatchChecksum es el checksum del contenido traducido, estable ante el
// orden de claves del patch.
func PatchChecksum(patch map[string]string) string {
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(patch[k]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// marshalOutcome serializa el outcome para el ledger.
func marshalOutcome(o SyncOutcome) json.RawMessage {
	b, _ := json.Marshal(o)
	return b
}
