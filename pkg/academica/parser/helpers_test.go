package parser

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/eeyn/academica/pkg/academica/layout"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func testLogger() (*logrus.Logger, *test.Hook) {
	return test.NewNullLogger()
}

func mustLayout(doc string) *layout.Layout {
	reg, err := layout.Load(strings.NewReader(doc))
	if err != nil {
		panic(err)
	}
	l, err := reg.Get("t")
	if err != nil {
		panic(err)
	}
	return l
}
