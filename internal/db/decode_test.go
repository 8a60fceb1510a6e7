package db

import "testing"

func TestDecodeCells(t *testing.T) {
	r, err := decodeCells([]byte(`{"Email":"a@school.com","ThucDat":4.5,"SiSo":30,"YeuCauXoa":true,"NhanXet_GV":null}`))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"Email":      "a@school.com",
		"ThucDat":    "4.5",
		"SiSo":       "30",
		"YeuCauXoa":  "TRUE",
		"NhanXet_GV": "",
	}
	for k, v := range want {
		if r[k] != v {
			t.Fatalf("%s: получили %q, ожидали %q", k, r[k], v)
		}
	}

	if _, err := decodeCells([]byte(`[1,2]`)); err == nil {
		t.Fatal("ожидали ошибку для не-объекта")
	}
}
