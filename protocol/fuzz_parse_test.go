package protocol

import "testing"

func FuzzParseControl(f *testing.F) {
	f.Add([]byte(`{"action":"refresh-token","data":{"token":"x"}}`))
	f.Add([]byte(`{"action":"add-channels","data":{"channels":{"0":"a"}}}`))
	f.Add([]byte(`{"action":"remove-channels","data":{"channels":[1,"b"]}}`))
	f.Add([]byte(`null`))

	f.Fuzz(func(t *testing.T, raw []byte) {
		c, err := ParseControl(raw)
		if err == nil && c == nil {
			t.Fatalf("nil control without error")
		}
		if err != nil && c != nil {
			t.Fatalf("control returned with error %v", err)
		}
	})
}
