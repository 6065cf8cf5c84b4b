package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changas/pkg/errors"
)

func TestContactDetector_Detect(t *testing.T) {
	d := NewContactDetector()

	tests := []struct {
		name string
		text string
		want ContactDetection
	}{
		{"plain text", "Hola, ¿a qué hora podés venir mañana?", ContactDetection{}},
		{"price is not a phone", "Te lo hago por 5000 pesos", ContactDetection{}},
		{"buenos aires landline", "Llamame al 011-1234-5678", ContactDetection{Phone: true}},
		{"mobile with country code", "mi cel +54 9 11 5555 1234", ContactDetection{Phone: true}},
		{"mobile with 15 prefix", "15 4444-3333", ContactDetection{Phone: true}},
		{"dotted number", "escribime 1122.3344", ContactDetection{Phone: true}},
		{"email", "mandame a juan.perez@gmail.com", ContactDetection{Email: true}},
		{"social keyword", "pasame tu whatsapp", ContactDetection{Social: true}},
		{"social short keyword", "hablamos por wsp", ContactDetection{Social: true}},
		{"signal keyword", "escribime por signal", ContactDetection{Social: true}},
		{"telegram link", "estoy en telegram.me/plomero_juan", ContactDetection{Social: true}},
		{"social domain", "entrá a wa.me/5491122223333", ContactDetection{Phone: true, Social: true}},
		{"social handle", "seguime en @plomero_juan", ContactDetection{Social: true}},
		{"every reason", "juan@mail.com, 011 4444 5555 o instagram", ContactDetection{Phone: true, Email: true, Social: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Detect(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContactDetector_ExtraKeywords(t *testing.T) {
	got, err := NewContactDetector().Detect("buscame en THREEMA")
	require.NoError(t, err)
	assert.False(t, got.Social)

	got, err = NewContactDetector(" Threema ", "").Detect("buscame en THREEMA")
	require.NoError(t, err)
	assert.True(t, got.Social)
}

func TestContactDetector_InvalidUTF8(t *testing.T) {
	d := NewContactDetector()

	_, err := d.Detect(string([]byte{0xff, 0xfe, 0xfd}))
	assert.True(t, errors.Is(err, errors.CodeDetector))
}
