package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsCodeForErrorsIs(t *testing.T) {
	err := Clone(ErrCrossGradeContamination, "student s1 mixed K2 and K3")
	wrapped := fmt.Errorf("merge: %w", err)

	assert.True(t, errors.Is(wrapped, ErrCrossGradeContamination))
	assert.False(t, errors.Is(wrapped, ErrAggregateChildMismatch))
	assert.Equal(t, "student s1 mixed K2 and K3", FromError(wrapped).Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Nil(t, FromError(nil))
}
