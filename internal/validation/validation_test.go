package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSessionID(t *testing.T) {
	assert.NoError(t, ValidateSessionID("a1b2c3d4e5f6"))
	assert.Error(t, ValidateSessionID(""))
	assert.Error(t, ValidateSessionID("../../etc/passwd"))
	assert.Error(t, ValidateSessionID("foo/bar"))
	assert.Error(t, ValidateSessionID(`foo\bar`))
}

func TestValidatePlanPath(t *testing.T) {
	assert.NoError(t, ValidatePlanPath("src/main.go", 100))
	assert.Error(t, ValidatePlanPath("", 100))
	assert.Error(t, ValidatePlanPath("/etc/passwd", 100))
	assert.Error(t, ValidatePlanPath("C:\\Windows\\system.ini", 100))
	assert.Error(t, ValidatePlanPath("../../outside.go", 100))
	assert.Error(t, ValidatePlanPath("a/../../b.go", 100))
	assert.Error(t, ValidatePlanPath("this/path/is/too/long.go", 5))
}
