package papersources

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		id   string
		want IdentifierKind
	}{
		{id: "12345678", want: KindNumeric},
		{id: "PMID:12345678", want: KindNumeric},
		{id: "pmid: 42", want: KindNumeric},
		{id: "2401.12345", want: KindDomain},
		{id: "2401.12345v2", want: KindDomain},
		{id: "arXiv:1706.03762", want: KindDomain},
		{id: "hep-th/9901001", want: KindDomain},
		{id: "math.GT/0309136", want: KindDomain},
		{id: "10.1038/nature14539", want: KindDOI},
		{id: "doi:10.1145/3292500.3330701", want: KindDOI},
		{id: "10.1/abc", want: KindDOI},
		{id: "doi:10.1/abc", want: KindDOI},
		{id: "10.1", want: KindUnknown},
		{id: "10./abc", want: KindUnknown},
		{id: "649def34f8be52c8b66281af98ae884c09aef38b", want: KindUnknown},
		{id: "", want: KindUnknown},
		{id: "   ", want: KindUnknown},
		{id: "not an id", want: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.id))
		})
	}
}

func TestStripPrefixes(t *testing.T) {
	assert.Equal(t, "123", StripPMIDPrefix("PMID: 123"))
	assert.Equal(t, "123", StripPMIDPrefix("123"))
	assert.Equal(t, "1706.03762", StripArXivPrefix("arXiv:1706.03762"))
	assert.Equal(t, "10.1/x", StripDOIPrefix("DOI:10.1/x"))
}
