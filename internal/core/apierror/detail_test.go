package apierror

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_StringDetail(t *testing.T) {
	got := Message([]byte(`{"detail":"No institution found with id abc"}`), "fallback")
	assert.Equal(t, "No institution found with id abc", got)
}

func TestMessage_ListDetailJoinsMsgs(t *testing.T) {
	body := `{"detail":[
		{"loc":["body","name"],"msg":"Field required","type":"missing"},
		{"loc":["body"],"msg":"Value error, OSG ID must start with 'https://osg-htc.org/iid/'","type":"value_error"}
	]}`

	got := Message([]byte(body), "fallback")

	assert.Equal(t, "Field required\nValue error, OSG ID must start with 'https://osg-htc.org/iid/'", got)
}

func TestMessage_ListEntryWithoutMsg(t *testing.T) {
	got := Message([]byte(`{"detail":[{"msg":"a"},{"code": 7}]}`), "fallback")
	assert.Equal(t, "a\n{\"code\":7}", got)
}

func TestMessage_Fallbacks(t *testing.T) {
	tests := map[string]string{
		"not json":     `<html>502 Bad Gateway</html>`,
		"no detail":    `{"error":"x"}`,
		"null detail":  `{"detail":null}`,
		"empty string": `{"detail":""}`,
		"empty list":   `{"detail":[]}`,
		"object":       `{"detail":{"msg":"x"}}`,
		"empty body":   ``,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, "Error updating institution", Message([]byte(body), "Error updating institution"))
		})
	}
}
