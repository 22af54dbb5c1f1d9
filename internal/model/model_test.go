package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/loan-assistant/internal/model"
)

func TestCanTransition_FollowsGraph(t *testing.T) {
	allowed := []struct{ from, to model.Stage }{
		{model.StageGreeting, model.StageQualification},
		{model.StageQualification, model.StagePersonalDetails},
		{model.StagePersonalDetails, model.StageVerification},
		{model.StageVerification, model.StageUnderwriting},
		{model.StageVerification, model.StageRejected},
		{model.StageUnderwriting, model.StageApproval},
		{model.StageUnderwriting, model.StageSalaryVerification},
		{model.StageUnderwriting, model.StageRejected},
		{model.StageSalaryVerification, model.StageApproval},
		{model.StageSalaryVerification, model.StageRejected},
	}
	for _, tc := range allowed {
		assert.True(t, model.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	skipped := []struct{ from, to model.Stage }{
		{model.StageGreeting, model.StagePersonalDetails},
		{model.StageQualification, model.StageVerification},
		{model.StagePersonalDetails, model.StageUnderwriting},
		{model.StageVerification, model.StageApproval},
		{model.StageApproval, model.StageGreeting},
		{model.StageRejected, model.StageUnderwriting},
		{model.StageUnderwriting, model.StageUnderwriting},
	}
	for _, tc := range skipped {
		assert.False(t, model.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStage_ValidAndTerminal(t *testing.T) {
	for _, s := range model.Stages {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, model.Stage("closing").Valid())
	assert.True(t, model.StageApproval.Terminal())
	assert.True(t, model.StageRejected.Terminal())
	assert.False(t, model.StageSalaryVerification.Terminal())
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name     string
		current  model.Status
		from, to model.Stage
		docs     bool
		want     model.Status
	}{
		{"approval completes", model.StatusActive, model.StageUnderwriting, model.StageApproval, false, model.StatusCompleted},
		{"kyc rejection", model.StatusActive, model.StageVerification, model.StageRejected, false, model.StatusRejected},
		{"salary slip pending", model.StatusActive, model.StageUnderwriting, model.StageSalaryVerification, false, model.StatusPendingVerification},
		{"waiting keeps status", model.StatusPendingVerification, model.StageSalaryVerification, model.StageSalaryVerification, false, model.StatusPendingVerification},
		{"documents verified", model.StatusPendingVerification, model.StageSalaryVerification, model.StageSalaryVerification, true, model.StatusDocumentsVerified},
		{"recheck approval", model.StatusDocumentsVerified, model.StageSalaryVerification, model.StageApproval, true, model.StatusCompleted},
		{"reprompt keeps active", model.StatusActive, model.StageQualification, model.StageQualification, false, model.StatusActive},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := model.DeriveStatus(tc.current, tc.from, tc.to, tc.docs)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := model.DeriveStatus(model.StatusActive, model.StageGreeting, model.StageApproval, false)
	assert.Error(t, err)
}

func TestProfileMerge_IsMonotonic(t *testing.T) {
	p := model.Profile{Name: "Rahul Sharma", Age: 30, LoanAmount: 200000}

	p.Merge(model.Profile{Name: "Someone Else", Age: 45, City: "Pune", LoanAmount: 900000})

	assert.Equal(t, "Rahul Sharma", p.Name)
	assert.Equal(t, 30, p.Age)
	assert.Equal(t, int64(200000), p.LoanAmount)
	assert.Equal(t, "Pune", p.City)

	p.Merge(model.Profile{})
	assert.Equal(t, "Pune", p.City, "empty delta never clears")

	p.Merge(model.Profile{DocumentsVerified: true})
	p.Merge(model.Profile{DocumentsVerified: false})
	assert.True(t, p.DocumentsVerified)
}

func TestConversationClone_CopiesMessages(t *testing.T) {
	c := model.Conversation{ID: "c1", Messages: []model.Message{{Content: "hi"}}}
	clone := c.Clone()
	clone.Messages[0].Content = "changed"
	clone.Messages = append(clone.Messages, model.Message{Content: "more"})

	assert.Equal(t, "hi", c.Messages[0].Content)
	assert.Len(t, c.Messages, 1)
}
