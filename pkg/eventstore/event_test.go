package eventstore

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendParamsValidation(t *testing.T) {
	v := validator.New(validator.WithRequiredStructEnabled())

	valid := AppendParams{
		StreamID:        "org-1",
		StreamType:      StreamOrganization,
		ExpectedVersion: AnyVersion,
		EventType:       "organization.created",
		Metadata:        Metadata{ActorID: "user:admin"},
	}
	require.NoError(t, v.Struct(valid))

	cases := map[string]func(p *AppendParams){
		"missing stream id":     func(p *AppendParams) { p.StreamID = "" },
		"missing stream type":   func(p *AppendParams) { p.StreamType = "" },
		"missing event type":    func(p *AppendParams) { p.EventType = "" },
		"non-namespaced type":   func(p *AppendParams) { p.EventType = "created" },
		"missing actor":         func(p *AppendParams) { p.Metadata.ActorID = "" },
		"version below -1":      func(p *AppendParams) { p.ExpectedVersion = -2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := valid
			mutate(&p)
			assert.Error(t, v.Struct(p))
		})
	}
}

func TestAllStreamTypesHasNoDuplicates(t *testing.T) {
	seen := map[StreamType]bool{}
	for _, st := range AllStreamTypes() {
		require.False(t, seen[st], "duplicate stream type %s", st)
		seen[st] = true
	}
}
