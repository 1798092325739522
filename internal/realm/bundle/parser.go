// Package bundle lee bundles de realms desde JSON en streaming. La entrada
// puede ser un único objeto o un array de objetos; cualquier otro token
// inicial produce cero bundles sin error.
package bundle

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"unicode"

	"github.com/dropDatabas3/realmport/internal/domain/types"
	"github.com/dropDatabas3/realmport/internal/realm"
)

type mode int

const (
	modeStart mode = iota
	modeSingle
	modeArray
	modeDone
)

// Parser decodifica un bundle por vez. No es seguro para uso concurrente.
type Parser struct {
	br   *bufio.Reader
	dec  *json.Decoder
	mode mode

	all     []types.RealmBundle
	drained bool
	err     error
}

func NewParser(r io.Reader) *Parser {
	return &Parser{br: bufio.NewReader(r)}
}

// Next retorna el siguiente bundle o io.EOF cuando no hay más. Un error de
// sintaxis después del token inicial es *realm.MalformedBundleError.
func (p *Parser) Next() (*types.RealmBundle, error) {
	if p.mode == modeStart {
		p.start()
	}

	switch p.mode {
	case modeSingle:
		p.mode = modeDone
		var b types.RealmBundle
		if err := p.dec.Decode(&b); err != nil {
			return nil, p.malformed(err)
		}
		return &b, nil

	case modeArray:
		if !p.dec.More() {
			p.mode = modeDone
			return nil, io.EOF
		}
		var raw json.RawMessage
		if err := p.dec.Decode(&raw); err != nil {
			p.mode = modeDone
			return nil, p.malformed(err)
		}
		// un elemento que no es objeto corta la iteración
		if firstByte(raw) != '{' {
			p.mode = modeDone
			return nil, io.EOF
		}
		var b types.RealmBundle
		if err := json.Unmarshal(raw, &b); err != nil {
			p.mode = modeDone
			return nil, p.malformed(err)
		}
		return &b, nil
	}
	return nil, io.EOF
}

// start mira el primer carácter significativo sin consumir el objeto.
func (p *Parser) start() {
	p.mode = modeDone
	for {
		r, _, err := p.br.ReadRune()
		if err != nil {
			return
		}
		if r == '\uFEFF' || unicode.IsSpace(r) {
			continue
		}
		if err := p.br.UnreadRune(); err != nil {
			return
		}
		p.dec = json.NewDecoder(p.br)
		switch r {
		case '{':
			p.mode = modeSingle
		case '[':
			if _, err := p.dec.Token(); err == nil {
				p.mode = modeArray
			}
		}
		return
	}
}

func (p *Parser) malformed(err error) error {
	var off int64
	if p.dec != nil {
		off = p.dec.InputOffset()
	}
	var se *json.SyntaxError
	if errors.As(err, &se) {
		off = se.Offset
	}
	return &realm.MalformedBundleError{Offset: off, Err: err}
}

// All consume el stream completo y retorna todos los bundles. El resultado
// queda cacheado: llamadas siguientes retornan el mismo slice (y el mismo
// error) sin volver a leer.
func (p *Parser) All() ([]types.RealmBundle, error) {
	if p.drained {
		return p.all, p.err
	}
	p.drained = true
	for {
		b, err := p.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.err = err
			break
		}
		p.all = append(p.all, *b)
	}
	return p.all, p.err
}

// ParseAll materializa todos los bundles de r.
func ParseAll(r io.Reader) ([]types.RealmBundle, error) {
	return NewParser(r).All()
}

func firstByte(raw []byte) byte {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return c
	}
	return 0
}
