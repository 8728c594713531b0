package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemPromptIsStable(t *testing.T) {
	withImage := SystemPrompt(true)
	withoutImage := SystemPrompt(false)

	require.NotEmpty(t, withImage)
	require.NotEmpty(t, withoutImage)
	assert.NotEqual(t, withImage, withoutImage)

	for i := 0; i < 5; i++ {
		assert.Equal(t, withoutImage, SystemPrompt(false))
		assert.Equal(t, withImage, SystemPrompt(true))
	}

	assert.Contains(t, withImage, "## Diagnosis")
	assert.Contains(t, withoutImage, "has not provided a specific image")
}

func TestParseAnalysisType(t *testing.T) {
	tests := []struct {
		input   string
		want    AnalysisType
		wantErr bool
	}{
		{"", GeneralRepair, false},
		{"General Repair", GeneralRepair, false},
		{"design review", DesignReview, false},
		{"TROUBLESHOOTING", Troubleshooting, false},
		{"component_analysis", ComponentAnalysis, false},
		{" Design Review ", DesignReview, false},
		{"Painting", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAnalysisType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "motor buzzing", Describe(GeneralRepair, "motor buzzing"))
	assert.Equal(t, "[Design Review] check my layout", Describe(DesignReview, "check my layout"))
	assert.Equal(t, "[Troubleshooting] ", Describe(Troubleshooting, ""))
}

func TestExportFilename(t *testing.T) {
	for _, at := range AnalysisTypes {
		name := ExportFilename(at)
		assert.True(t, strings.HasPrefix(name, "buildbuddy_analysis_"))
		assert.True(t, strings.HasSuffix(name, ".txt"))
		assert.NotContains(t, name, " ")
	}
	assert.Equal(t, "buildbuddy_analysis_component_analysis.txt", ExportFilename(ComponentAnalysis))
	assert.Equal(t, "buildbuddy_analysis_general_repair.txt", ExportFilename(""))
}
