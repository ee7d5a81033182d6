package fabric

import (
	"errors"
	"testing"

	"github.com/hyperledger/fabric-protos-go-apiv2/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestRemoteMessage_IncludesPeerDetails(t *testing.T) {
	st, err := status.New(codes.Aborted, "failed to endorse transaction").WithDetails(&gateway.ErrorDetail{
		Address: "peer0.govt.tera.bt:7051",
		MspId:   "GovtMSP",
		Message: "chaincode response 500, land land9 does not exist",
	})
	require.NoError(t, err)

	msg := remoteMessage(st.Err())
	assert.Equal(t, "failed to endorse transaction: chaincode response 500, land land9 does not exist", msg)
}

func TestRemoteMessage_PlainError(t *testing.T) {
	assert.Equal(t, "boom", remoteMessage(errors.New("boom")))
}

func TestRemoteExecutionError(t *testing.T) {
	cause := errors.New("x")
	err := error(&RemoteExecutionError{Procedure: "BuyLand", Mode: ModeSubmit, Message: "land land1 is not for sale", Err: cause})
	assert.Equal(t, "submit BuyLand: land land1 is not for sale", err.Error())
	assert.True(t, errors.Is(err, cause))
}
