package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailguard/internal/risk"
	vmodels "mailguard/internal/validation/models"
	dErrors "mailguard/pkg/domain-errors"
)

func TestDocumentToConfig(t *testing.T) {
	doc := Document{
		ID:          "acme",
		Validations: map[string]bool{"smtp": true, "device": false},
		Actions:     map[string]string{"mx": "block"},
		Whitelist:   []string{" CEO@Acme.com ", "ceo@acme.com"},
		Blacklist:   []string{"@spam.example"},
		Weights:     map[string]int{"disposable": 80, "role_email": 0},
		Thresholds:  &risk.Thresholds{Flag: 40, Block: 90},
	}

	cfg, err := doc.ToConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsActive())
	assert.Equal(t, vmodels.Toggles{vmodels.CheckSMTP: true, vmodels.CheckDevice: false}, cfg.Validations)
	assert.Equal(t, vmodels.ActionBlock, cfg.Actions[vmodels.CheckMX])
	assert.Equal(t, []string{"ceo@acme.com"}, cfg.Whitelist)
	assert.Equal(t, risk.Weights{vmodels.SignalDisposableEmail: 80, vmodels.SignalRoleEmail: 0}, cfg.Weights)

	settings := cfg.RiskSettings()
	assert.Equal(t, 40, settings.Thresholds.Flag)

	round, err := NewDocument(cfg).ToConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg, round)
}

func TestDocumentRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
	}{
		{"missing id", Document{}},
		{"unknown check", Document{ID: "acme", Validations: map[string]bool{"telepathy": true}}},
		{"unknown action", Document{ID: "acme", Actions: map[string]string{"mx": "shrug"}}},
		{"unknown weight", Document{ID: "acme", Weights: map[string]int{"vibes": 3}}},
		{"unknown status", Document{ID: "acme", Status: "paused"}},
		{"inverted thresholds", Document{ID: "acme", Thresholds: &risk.Thresholds{Flag: 80, Block: 50}}},
		{"zero thresholds", Document{ID: "acme", Thresholds: &risk.Thresholds{Flag: 0, Block: 0}}},
		{"negative flag", Document{ID: "acme", Thresholds: &risk.Thresholds{Flag: -1, Block: 50}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.doc.ToConfig()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation) || dErrors.HasCode(err, dErrors.CodeBadRequest))
		})
	}
}
