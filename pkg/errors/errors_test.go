package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsKeepsAppErrorThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("send: %w", Forbidden("Not a member of this chat"))

	appErr := As(wrapped)
	assert.Equal(t, http.StatusForbidden, appErr.Code)
	assert.Equal(t, KindAuthorization, appErr.Kind)
	assert.Equal(t, "Not a member of this chat", appErr.Message)
	assert.True(t, Is(wrapped, KindAuthorization))
}

func TestAsHidesStoreDetail(t *testing.T) {
	cause := stderrors.New("pq: relation \"messages\" does not exist")

	appErr := As(cause)
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
	assert.Equal(t, KindStore, appErr.Kind)
	assert.Equal(t, "Internal server error", appErr.Message)
	assert.ErrorIs(t, appErr, cause)
	assert.Nil(t, As(nil))
}
