package manifest

import (
	"testing"

	"hivekeeper/internal/apperr"
	"hivekeeper/internal/env"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var simpleHTTPSchema = []Parameter{
	{Name: "port", Type: TypeInt, Required: true},
	{Name: "threading", Type: TypeBool, Default: false},
	{Name: "banner", Type: TypeString},
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing required", nil, "'port' is missing"},
		{"bad int", []string{"port=notint"}, "Bad value for port=notint (must be integer)"},
		{"bad bool", []string{"port=8888", "threading=notbool"}, "Bad value for threading=notbool (must be boolean)"},
		{"unknown", []string{"port=1", "color=red"}, "Unknown parameter 'color'"},
		{"no equals", []string{"port"}, "Bad parameter 'port' (expected name=value)"},
		{"first error wins", []string{"threading=maybe", "port=x"}, "Bad value for threading=maybe (must be boolean)"},
		{"token errors before missing", []string{"threading=maybe"}, "Bad value for threading=maybe (must be boolean)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(simpleHTTPSchema, tt.args)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestValidateRejectsBadDefault(t *testing.T) {
	schema := []Parameter{
		{Name: "port", Type: TypeInt, Default: "eighty"},
		{Name: "threading", Type: TypeBool, Default: 3},
	}
	_, err := Validate(schema, nil)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, "default of 'port' must be integer", err.Error())

	// an explicit value makes the default irrelevant
	_, err = Validate(schema, []string{"port=80"})
	require.Error(t, err)
	assert.Equal(t, "default of 'threading' must be boolean", err.Error())

	ps, err := Validate(schema, []string{"port=80", "threading=on"})
	require.NoError(t, err)
	assert.Equal(t, true, ps["threading"])
}

func TestValidateCoercion(t *testing.T) {
	set, err := Validate(simpleHTTPSchema, []string{"port=8888", "banner= x=y "})
	require.NoError(t, err)
	port, ok := set.Int("port")
	assert.True(t, ok)
	assert.Equal(t, 8888, port)
	threading, ok := set.Bool("threading")
	assert.True(t, ok)
	assert.False(t, threading)
	assert.Equal(t, " x=y ", set["banner"])

	for raw, want := range map[string]bool{
		"TRUE": true, "yes": true, "1": true, "On": true,
		"false": false, "No": false, "0": false, "off": false,
	} {
		set, err := Validate(simpleHTTPSchema, []string{"port=1", "threading=" + raw})
		require.NoError(t, err, raw)
		assert.Equal(t, want, set["threading"], raw)
	}
}

func TestValidateLastDuplicateWins(t *testing.T) {
	set, err := Validate(simpleHTTPSchema, []string{"port=1", "port=2"})
	require.NoError(t, err)
	assert.Equal(t, 2, set["port"])
}

func TestValidateDeterministic(t *testing.T) {
	args := []string{"threading=yes", "port=9000"}
	a, errA := Validate(simpleHTTPSchema, args)
	b, errB := Validate(simpleHTTPSchema, args)
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, a, b)
}

func TestParameterSetEnvRoundTrip(t *testing.T) {
	set := ParameterSet{"port": 8888, "threading": true, "banner": "nginx"}
	vars, err := set.Env()
	require.NoError(t, err)
	assert.Contains(t, vars, env.ParamPrefix+"PORT=8888")
	assert.Contains(t, vars, env.ParamPrefix+"THREADING=true")

	var encoded string
	for _, kv := range vars {
		if len(kv) > len(env.ParamsEnv)+1 && kv[:len(env.ParamsEnv)+1] == env.ParamsEnv+"=" {
			encoded = kv[len(env.ParamsEnv)+1:]
		}
	}
	decoded, err := DecodeParams(encoded)
	require.NoError(t, err)
	assert.Equal(t, set, decoded)
}
