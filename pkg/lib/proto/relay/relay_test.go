package relay_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natpunch/pkg/lib/proto"
	pb "github.com/dep2p/go-natpunch/pkg/lib/proto/relay"
)

func TestHopMessage_Reservation(t *testing.T) {
	in := &pb.HopMessage{
		Type:   pb.HopStatus,
		Status: pb.StatusOK,
		Reservation: &pb.Reservation{
			Expire: 1700000000,
			Addrs:  [][]byte{{0x04, 127, 0, 0, 1}},
		},
		Limit: &pb.Limit{Duration: 120, Data: 1 << 17},
	}
	var buf bytes.Buffer
	require.NoError(t, proto.WriteDelimited(&buf, in))

	var out pb.HopMessage
	require.NoError(t, proto.ReadDelimited(&buf, 4096, &out))
	assert.Equal(t, pb.HopStatus, out.Type)
	assert.Equal(t, pb.StatusOK, out.Status)
	require.NotNil(t, out.Reservation)
	assert.Equal(t, uint64(1700000000), out.Reservation.Expire)
	assert.Equal(t, in.Reservation.Addrs, out.Reservation.Addrs)
	require.NotNil(t, out.Limit)
	assert.Equal(t, uint32(120), out.Limit.Duration)
	assert.Equal(t, uint64(1<<17), out.Limit.Data)
	assert.Nil(t, out.Peer)
}

func TestHopMessage_ReserveHasType(t *testing.T) {
	// RESERVE 为 0，仍然必须出现在编码中
	data, err := (&pb.HopMessage{Type: pb.HopReserve}).Marshal()
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	var out pb.HopMessage
	require.NoError(t, out.Unmarshal(data))
	assert.Equal(t, pb.HopReserve, out.Type)

	assert.ErrorIs(t, out.Unmarshal(nil), proto.ErrMalformed)
}

func TestStopMessage_Connect(t *testing.T) {
	in := &pb.StopMessage{
		Type: pb.StopConnect,
		Peer: &pb.Peer{ID: []byte{0x00, 0x01, 0xaa}},
	}
	data, err := in.Marshal()
	require.NoError(t, err)

	var out pb.StopMessage
	require.NoError(t, out.Unmarshal(data))
	assert.Equal(t, pb.StopConnect, out.Type)
	require.NotNil(t, out.Peer)
	assert.Equal(t, in.Peer.ID, out.Peer.ID)
	assert.Equal(t, pb.StatusUnused, out.Status)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "NO_RESERVATION", pb.StatusNoReservation.String())
	assert.Equal(t, "RESERVATION_REFUSED", pb.StatusReservationRefused.String())
	assert.Equal(t, "CONNECT", pb.HopConnect.String())
}
