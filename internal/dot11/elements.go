package dot11

import "iter"

// Information element IDs the decoder knows by name.
const (
	ElementSSID           uint8 = 0
	ElementSupportedRates uint8 = 1
	ElementDSParameterSet uint8 = 3
	ElementTIM            uint8 = 5
	ElementCountry        uint8 = 7
	ElementRSN            uint8 = 48
	ElementExtendedRates  uint8 = 50
	ElementVendorSpecific uint8 = 221
)

// Element is one information element.
type Element struct {
	ID   uint8
	Data []byte
}

// Elements iterates the information elements of a management frame. It
// stops at the first element whose declared length overruns the capture.
// The sequence is empty for non-management frames and may be ranged over
// any number of times.
func (f *Frame) Elements() iter.Seq2[uint8, []byte] {
	return elementsFrom(f.raw, f.derived().ieStart)
}

// InformationElements collects Elements into a slice.
func (f *Frame) InformationElements() []Element {
	var out []Element
	for id, data := range f.Elements() {
		out = append(out, Element{ID: id, Data: data})
	}
	return out
}

// Element returns the data of the first element with the given id.
func (f *Frame) Element(id uint8) ([]byte, bool) {
	for eid, data := range f.Elements() {
		if eid == id {
			return data, true
		}
	}
	return nil, false
}

// DSChannel returns the channel advertised in the DS parameter set, if any.
func (f *Frame) DSChannel() (uint8, bool) {
	data, ok := f.Element(ElementDSParameterSet)
	if !ok || len(data) < 1 {
		return 0, false
	}
	return data[0], true
}

func elementsFrom(raw []byte, start int) iter.Seq2[uint8, []byte] {
	return func(yield func(uint8, []byte) bool) {
		if start < 0 {
			return
		}
		pos := start
		for pos+2 <= len(raw) {
			id := raw[pos]
			n := int(raw[pos+1])
			end := pos + 2 + n
			if end > len(raw) {
				return
			}
			if !yield(id, raw[pos+2:end:end]) {
				return
			}
			pos = end
		}
	}
}
