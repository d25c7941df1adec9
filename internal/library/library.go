// Package library bundles a handful of well-known IRP protocol
// descriptions as parseable strings, the way a small embedded
// protocol database would ship them.
package library

// Entry names one protocol's canonical IRP notation.
type Entry struct {
	Name string
	IRP  string
}

// All is the built-in protocol list, looked up by (case-sensitive)
// name via Lookup.
var All = []Entry{
	{Name: "NEC1", IRP: "{38.4k,564}<1,-1|1,-3>(16,-8,D:8,S:8,F:8,~F:8,1,^108m,(16,-4,1,^108m)*)[D:0..255,S:0..255=255-D,F:0..255]"},
	{Name: "NEC2", IRP: "{38.4k,564}<1,-1|1,-3>(16,-8,D:8,S:8,F:8,~F:8,1,^108m,(16,-4,1,^78m)*)[D:0..255,S:0..255=255-D,F:0..255]"},
	{Name: "RC5", IRP: "{36k,889,msb}<1,-1|-1,1>((1,~F:1:6,T:1,D:5,F:6,^114m)*,T=1-T)[D:0..31,F:0..127,T@:0..1=0]"},
	{Name: "RC6", IRP: "{36k,444,msb}<-1,1|1,-1>((6,-2,1:1,T:1,D:8,F:8,^107m)*,T=1-T)[D:0..255,F:0..255,T@:0..1=0]"},
	{Name: "Sony12", IRP: "{40k,600,msb}<1,-1|2,-1>(4,-1,F:7,D:5,^45m)*[D:0..31,F:0..127]"},
	{Name: "Sony20", IRP: "{40k,600,msb}<1,-1|2,-1>(4,-1,F:7,D:5,S:8,^45m)*[D:0..31,S:0..255,F:0..127]"},
}

// Lookup finds an entry by name.
func Lookup(name string) (Entry, bool) {
	for _, e := range All {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Names returns every known protocol name.
func Names() []string {
	names := make([]string, len(All))
	for i, e := range All {
		names[i] = e.Name
	}
	return names
}
