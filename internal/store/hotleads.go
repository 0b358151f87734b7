package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/salesmachine/internal/model"
)

// HotLead is one row of HotLeads.
type HotLead struct {
	CompanyID         string            `json:"company_id"`
	Name              string            `json:"name"`
	CNPJ              string            `json:"cnpj,omitempty"`
	BuyingIntentScore model.Score       `json:"buying_intent_score"`
	ICPScore          *model.Score      `json:"icp_score,omitempty"`
	Temperature       model.Temperature `json:"temperature,omitempty"`
	OpenDeals         int               `json:"open_deals"`
}

// HotLeads returns companies whose buying intent is at least minIntent,
// strongest intent first, then highest ICP score.
func (s *Store) HotLeads(ctx context.Context, minIntent model.Score) ([]HotLead, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, COALESCE(c.cnpj, ''), c.buying_intent_score, c.icp_score,
		       COALESCE((SELECT r.temperature FROM icp_analysis_results r
		                 WHERE r.company_id = c.id
		                 ORDER BY r.analyzed_at DESC, r.id COLLATE BINARY ASC LIMIT 1), ''),
		       (SELECT COUNT(*) FROM sdr_deals d WHERE d.company_id = c.id AND d.status = 'open')
		FROM companies c
		WHERE c.buying_intent_score >= ?
		ORDER BY c.buying_intent_score DESC, COALESCE(c.icp_score, -1) DESC, c.id COLLATE BINARY ASC
	`, int64(minIntent))
	if err != nil {
		return nil, wrapDBError("hot leads", err)
	}
	return collectRows(rows, "hot leads", func(r scanner) (HotLead, error) {
		var (
			h      HotLead
			intent int64
			icp    sql.NullInt64
			temp   string
		)
		if err := r.Scan(&h.CompanyID, &h.Name, &h.CNPJ, &intent, &icp, &temp, &h.OpenDeals); err != nil {
			return HotLead{}, err
		}
		var err error
		if h.BuyingIntentScore, err = model.ParseScore(intent); err != nil {
			return HotLead{}, fmt.Errorf("hot lead %s: %w", h.CompanyID, err)
		}
		if h.ICPScore, err = scanNullScore(icp); err != nil {
			return HotLead{}, fmt.Errorf("hot lead %s: %w", h.CompanyID, err)
		}
		if temp != "" {
			if h.Temperature, err = model.ParseTemperature(temp); err != nil {
				return HotLead{}, fmt.Errorf("hot lead %s: %w", h.CompanyID, err)
			}
		}
		return h, nil
	})
}
