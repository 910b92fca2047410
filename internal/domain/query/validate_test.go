package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAcceptsReadOnly(t *testing.T) {
	valid := []string{
		"SELECT 1",
		"  select name from DIMENSIONS.DIM_DRIVERS;  ",
		"WITH x AS (SELECT 1 AS a) SELECT a FROM x",
		"SELECT created_at, updated FROM t -- DELETE everything\n",
	}
	for _, sql := range valid {
		assert.NoError(t, Validate(sql), sql)
	}
}

func TestValidateRejectsWrites(t *testing.T) {
	invalid := []string{
		"",
		"   ;",
		"DROP TABLE FACTS.FACT_RESULTS",
		"SELECT 1; DELETE FROM FACTS.FACT_RESULTS",
		"WITH x AS (SELECT 1) INSERT INTO t SELECT * FROM x",
		"/* hi */ UPDATE t SET a = 1",
	}
	for _, sql := range invalid {
		assert.Error(t, Validate(sql), sql)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "SELECT 1", Normalize(" /* c */ SELECT 1 ;; "))
	assert.Equal(t, "SELECT a \nFROM t", Normalize("SELECT a -- note\nFROM t;"))
}
