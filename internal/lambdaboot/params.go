package lambdaboot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// ParameterGetter is the SSM call used to fill settings.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Param maps an environment variable to an SSM parameter. The parameter
// name is read from NameEnv, falling back to DefaultName.
type Param struct {
	Env         string
	NameEnv     string
	DefaultName string
	Secret      bool
}

// GradingParams are the settings the grading Lambda may keep in SSM.
var GradingParams = []Param{
	{Env: "PROJECT_ID", NameEnv: "SSM_PROJECT_ID_PARAM", DefaultName: "/vawa-grading/prod/project-id"},
	{Env: "SPREADSHEET_ID", NameEnv: "SSM_SPREADSHEET_ID_PARAM", DefaultName: "/vawa-grading/prod/spreadsheet-id"},
	{Env: "GOOGLE_CREDENTIALS_JSON", NameEnv: "SSM_SERVICE_ACCOUNT_PARAM", DefaultName: "/vawa-grading/prod/service-account-json", Secret: true},
}

// LoadParams sets every Param whose environment variable is empty from SSM.
// A parameter that cannot be read is an error; the run cannot start
// without it.
func LoadParams(ctx context.Context, client ParameterGetter, params []Param) error {
	for _, p := range params {
		if os.Getenv(p.Env) != "" {
			continue
		}
		name := os.Getenv(p.NameEnv)
		if name == "" {
			name = p.DefaultName
		}

		ssmStart := time.Now()
		result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           aws.String(name),
			WithDecryption: aws.Bool(p.Secret),
		})
		if err != nil {
			return fmt.Errorf("read %s from SSM parameter %s: %w", p.Env, name, err)
		}
		if result.Parameter == nil || aws.ToString(result.Parameter.Value) == "" {
			return fmt.Errorf("SSM parameter %s for %s is empty", name, p.Env)
		}
		if err := os.Setenv(p.Env, aws.ToString(result.Parameter.Value)); err != nil {
			return fmt.Errorf("set %s: %w", p.Env, err)
		}
		log.Debug().Str("param", name).Str("env", p.Env).Dur("elapsed", time.Since(ssmStart)).Msg("Setting loaded from SSM")
	}
	return nil
}
