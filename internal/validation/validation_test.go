package validation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/funnelhq/funnel360/internal/apperr"
	"github.com/funnelhq/funnel360/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	appErr := apperr.From(err)
	require.Equal(t, apperr.KindValidation, appErr.Kind)
	return appErr.Fields
}

func TestCreateClientRequest_Validate(t *testing.T) {
	tests := []struct {
		name       string
		req        CreateClientRequest
		wantFields map[string]string
	}{
		{
			name: "valid",
			req:  CreateClientRequest{Name: " Debug Client ", Email: "debug@test.com"},
		},
		{
			name:       "missing name and email",
			req:        CreateClientRequest{},
			wantFields: map[string]string{"name": "is required", "email": "is required"},
		},
		{
			name:       "whitespace name",
			req:        CreateClientRequest{Name: "   ", Email: "debug@test.com"},
			wantFields: map[string]string{"name": "is required"},
		},
		{
			name:       "invalid email",
			req:        CreateClientRequest{Name: "Debug Client", Email: "not-an-email"},
			wantFields: map[string]string{"email": "must be a valid email address"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := tt.req.Validate()
			if tt.wantFields == nil {
				require.NoError(t, err)
				require.Equal(t, "Debug Client", input.Name)
				return
			}
			require.Equal(t, tt.wantFields, fieldsOf(t, err))
		})
	}
}

func TestCreateProjectRequest_Validate(t *testing.T) {
	clientID := uuid.Must(uuid.NewV7())

	valid := func() CreateProjectRequest {
		return CreateProjectRequest{
			Title:    "Debug Project",
			ClientID: clientID.String(),
			Budget:   "1000.00",
			Priority: "medium",
		}
	}

	t.Run("valid", func(t *testing.T) {
		input, err := valid().Validate()
		require.NoError(t, err)
		require.Equal(t, clientID, input.ClientID)
		require.True(t, decimal.RequireFromString("1000").Equal(input.Budget))
		require.Equal(t, models.PriorityMedium, input.Priority)
		require.Nil(t, input.OwnerID)
	})

	t.Run("budget rules", func(t *testing.T) {
		cases := map[Amount]string{
			"-1":                     "must not be negative",
			"abc":                    "must be a number",
			"10.123":                 "must have at most 2 decimal places",
			"":                       "is required",
			"10000000000000":         "is too large",
			"1e13":                   "must be a plain decimal number",
			"1E5":                    "must be a plain decimal number",
			"1e50000000":             "must be a plain decimal number",
			"1e-50000000":            "must be a plain decimal number",
			"0.00000000000000000001": "is too long",
			"999999999999.99":        "",
			"1000000":                "",
		}
		for budget, want := range cases {
			req := valid()
			req.Budget = budget
			start := time.Now()
			_, err := req.Validate()
			require.Less(t, time.Since(start), time.Second, budget)
			if want == "" {
				require.NoError(t, err, budget)
				continue
			}
			require.Equal(t, want, fieldsOf(t, err)["budget"], budget)
		}
	})

	t.Run("priority must be enumerated", func(t *testing.T) {
		req := valid()
		req.Priority = "urgent"
		_, err := req.Validate()
		require.Equal(t, map[string]string{"priority": "must be one of low, medium, high"}, fieldsOf(t, err))
	})

	t.Run("missing fields reported together", func(t *testing.T) {
		_, err := CreateProjectRequest{}.Validate()
		fields := fieldsOf(t, err)
		require.Contains(t, fields, "title")
		require.Contains(t, fields, "clientId")
		require.Contains(t, fields, "budget")
		require.Contains(t, fields, "priority")
	})

	t.Run("unparseable client id is an invalid reference", func(t *testing.T) {
		req := valid()
		req.ClientID = "nonexistent"
		_, err := req.Validate()
		require.Equal(t, apperr.KindInvalidReference, apperr.KindOf(err))
	})

	t.Run("validation wins over reference errors", func(t *testing.T) {
		req := valid()
		req.ClientID = "nonexistent"
		req.Budget = "-5"
		_, err := req.Validate()
		require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
}

func TestAmount_UnmarshalJSON(t *testing.T) {
	var req CreateProjectRequest
	require.NoError(t, json.Unmarshal([]byte(`{"budget": 1000.50}`), &req))
	require.Equal(t, Amount("1000.50"), req.Budget)

	require.NoError(t, json.Unmarshal([]byte(`{"budget": "250"}`), &req))
	require.Equal(t, Amount("250"), req.Budget)
}

func TestUpdateProjectRequest_Apply(t *testing.T) {
	existing := &models.Project{
		Title:    "Website",
		ClientID: uuid.Must(uuid.NewV7()),
		OwnerID:  uuid.Must(uuid.NewV7()),
		Budget:   decimal.RequireFromString("10.50"),
		Priority: models.PriorityLow,
	}

	priority := "high"
	input, err := UpdateProjectRequest{Priority: &priority}.Apply(existing)
	require.NoError(t, err)
	require.Equal(t, models.PriorityHigh, input.Priority)
	require.Equal(t, existing.ClientID, input.ClientID)
	require.True(t, existing.Budget.Equal(input.Budget))
	require.NotNil(t, input.OwnerID)
	require.Equal(t, existing.OwnerID, *input.OwnerID)

	empty := ""
	_, err = UpdateProjectRequest{Title: &empty}.Apply(existing)
	require.Equal(t, "is required", fieldsOf(t, err)["title"])
}
