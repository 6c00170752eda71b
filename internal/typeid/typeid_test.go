package typeid

import (
	"strings"
	"testing"

	"github.com/tdewolff/test"
)

func TestNewAndValidate(t *testing.T) {
	id := NewSceneID()
	test.That(t, strings.HasPrefix(id, PrefixScene+"_"), "unexpected id", id)
	test.Error(t, Validate(id, PrefixScene))
	test.That(t, Validate(id, PrefixLayer) != nil, "prefix mismatch accepted")
	test.That(t, Validate("not an id", PrefixScene) != nil, "garbage accepted")
	test.That(t, NewLayerID() != NewLayerID(), "ids repeat")
}
