package messaging

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging/internal/logger"
	"messaging/pkg/models"
)

func TestParsePropositionsSkipsBadEntries(t *testing.T) {
	payload := []interface{}{
		codeBasedProposition("p1", promoSurface),
		"not an object",
		map[string]interface{}{"scope": promoSurface.URI},
		map[string]interface{}{"id": "no-scope"},
		propositionRaw("p2", otherSurface,
			itemRaw("ok", models.SchemaHTMLContent, "<p/>"),
			map[string]interface{}{"id": "broken"},
		),
	}

	props := ParsePropositions(payload, logger.NopLogger())
	require.Len(t, props, 2)
	assert.Equal(t, "p1", props[0].UniqueID)
	assert.Equal(t, "p2", props[1].UniqueID)
	require.Len(t, props[1].Items, 1)
	assert.Equal(t, "p2", props[1].Items[0].PropositionID)

	grouped := GroupBySurface(props)
	assert.Len(t, grouped[promoSurface], 1)
	assert.Len(t, grouped[otherSurface], 1)
}

func TestParsePayloads(t *testing.T) {
	payloads := ParsePayloads([]interface{}{codeBasedProposition("p1", promoSurface)}, logger.NopLogger())
	require.Len(t, payloads, 1)
	assert.Equal(t, "p1", payloads[0].ID)
	assert.Equal(t, promoSurface.URI, payloads[0].Scope)
}

func TestParsePropositionsProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	scopes := []interface{}{promoSurface.URI, otherSurface.URI, appSurface.URI, ""}

	properties.Property("parsed count never exceeds payload and scopes come from the payload", prop.ForAll(
		func(kinds []int, scopeIdx []int) bool {
			payload := make([]interface{}, 0, len(kinds))
			listed := map[string]struct{}{}
			for i, kind := range kinds {
				scope := scopes[scopeIdx[i%len(scopeIdx)]%len(scopes)].(string)
				id := fmt.Sprintf("p%d", i)
				switch kind {
				case 0:
					payload = append(payload, "garbage")
				case 1:
					payload = append(payload, map[string]interface{}{"id": id, "scope": scope})
					listed[scope] = struct{}{}
				default:
					payload = append(payload, map[string]interface{}{
						"id":    id,
						"scope": scope,
						"items": []interface{}{itemRaw(id+"-i", models.SchemaHTMLContent, "<p/>")},
					})
					listed[scope] = struct{}{}
				}
			}

			props := ParsePropositions(payload, logger.NopLogger())
			if len(props) > len(payload) {
				return false
			}
			for _, p := range props {
				if _, ok := listed[p.Scope]; !ok {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 2)),
		gen.SliceOfN(4, gen.IntRange(0, 3)),
	))

	properties.TestingRun(t)
}
