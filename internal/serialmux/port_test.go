package serialmux

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestParseFraming(t *testing.T) {
	tests := []struct {
		in      string
		want    *serial.Mode
		wantErr bool
	}{
		{in: "", want: &serial.Mode{DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}},
		{in: "7e2", want: &serial.Mode{DataBits: 7, Parity: serial.EvenParity, StopBits: serial.TwoStopBits}},
		{in: " 5O1 ", want: &serial.Mode{DataBits: 5, Parity: serial.OddParity, StopBits: serial.OneStopBit}},
		{in: "8S1", want: &serial.Mode{DataBits: 8, Parity: serial.SpaceParity, StopBits: serial.OneStopBit}},
		{in: "9N1", wantErr: true},
		{in: "8X1", wantErr: true},
		{in: "8N3", wantErr: true},
		{in: "8N1.5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFraming(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPortOptions_Mode(t *testing.T) {
	mode, err := PortOptions{}.Mode()
	require.NoError(t, err)
	assert.Equal(t, DefaultBaudRate, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)

	mode, err = PortOptions{BaudRate: 9600, Framing: "7E1"}.Mode()
	require.NoError(t, err)
	assert.Equal(t, &serial.Mode{BaudRate: 9600, DataBits: 7, Parity: serial.EvenParity, StopBits: serial.OneStopBit}, mode)

	_, err = PortOptions{BaudRate: 12345}.Mode()
	assert.Error(t, err)
	_, err = PortOptions{Framing: "8Q1"}.Mode()
	assert.Error(t, err)
}

func TestOpenPortWith(t *testing.T) {
	port := NewTestableSerialPort()
	var gotPath string
	mux, err := OpenPortWith("/dev/ttyACM0", PortOptions{}, func(path string, _ PortOptions) (SerialPorter, error) {
		gotPath = path
		return port, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", gotPath)
	require.NoError(t, mux.SendCommand("H"))
	assert.Equal(t, "H\n", string(port.GetWrittenData()))

	_, err = OpenPortWith("/dev/ttyACM0", PortOptions{Framing: "4N1"}, func(string, PortOptions) (SerialPorter, error) {
		t.Fatal("opener called with invalid options")
		return nil, nil
	})
	assert.Error(t, err)

	busy := errors.New("busy")
	_, err = OpenPortWith("/dev/ttyACM0", PortOptions{}, func(string, PortOptions) (SerialPorter, error) {
		return nil, busy
	})
	assert.ErrorIs(t, err, busy)
}
