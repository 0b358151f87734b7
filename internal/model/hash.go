package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows future algorithm migration.
const (
	DomainLeadFingerprint = "salesmachine/lead/v1"
	DomainEvidence        = "salesmachine/evidence/v1"
	DomainCanvasSnapshot  = "salesmachine/canvas/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// LeadFingerprint identifies a captured lead for duplicate detection.
//
// A lead with a CNPJ is identified by the CNPJ alone. Without one, the
// lowercased email domain and normalized company name are used.
func LeadFingerprint(cnpj, companyName, email string) (string, error) {
	obj := map[string]any{}
	if cnpj != "" {
		obj["cnpj"] = cnpj
	} else {
		obj["name"] = strings.ToLower(NormalizeText(companyName))
		if _, domain, ok := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@"); ok {
			obj["domain"] = domain
		}
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("LeadFingerprint: %w", err)
	}
	return hashWithDomain(DomainLeadFingerprint, canonical), nil
}

// EvidenceID computes a stable ID for an ICP evidence record so the same
// source and excerpt are stored once per analysis.
func EvidenceID(analysisID, criterion, sourceURL, excerpt string) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"analysis_id": analysisID,
		"criterion":   criterion,
		"source_url":  sourceURL,
		"excerpt":     excerpt,
	})
	if err != nil {
		return "", fmt.Errorf("EvidenceID: %w", err)
	}
	return hashWithDomain(DomainEvidence, canonical), nil
}

// SnapshotHash hashes canonical canvas snapshot bytes.
func SnapshotHash(snapshot []byte) string {
	return hashWithDomain(DomainCanvasSnapshot, snapshot)
}
