package lambdaboot

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	values   map[string]string
	requests []*ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.requests = append(f.requests, in)
	v, ok := f.values[aws.ToString(in.Name)]
	if !ok {
		return nil, errors.New("ParameterNotFound")
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(v)}}, nil
}

func TestLoadParams(t *testing.T) {
	t.Setenv("PROJECT_ID", "already-set")
	t.Setenv("SPREADSHEET_ID", "")
	t.Setenv("GOOGLE_CREDENTIALS_JSON", "")
	t.Setenv("SSM_SPREADSHEET_ID_PARAM", "/custom/sheet")
	t.Setenv("SSM_SERVICE_ACCOUNT_PARAM", "")

	client := &fakeSSM{values: map[string]string{
		"/custom/sheet": "sheet-123",
		"/vawa-grading/prod/service-account-json": `{"type":"service_account"}`,
	}}

	require.NoError(t, LoadParams(context.Background(), client, GradingParams))

	assert.Equal(t, "already-set", os.Getenv("PROJECT_ID"))
	assert.Equal(t, "sheet-123", os.Getenv("SPREADSHEET_ID"))
	assert.Equal(t, `{"type":"service_account"}`, os.Getenv("GOOGLE_CREDENTIALS_JSON"))

	require.Len(t, client.requests, 2)
	assert.False(t, aws.ToBool(client.requests[0].WithDecryption))
	assert.True(t, aws.ToBool(client.requests[1].WithDecryption))
}

func TestLoadParams_MissingParameter(t *testing.T) {
	t.Setenv("PROJECT_ID", "")
	t.Setenv("SSM_PROJECT_ID_PARAM", "")

	err := LoadParams(context.Background(), &fakeSSM{}, GradingParams[:1])
	assert.ErrorContains(t, err, "/vawa-grading/prod/project-id")
}
