package datanode_test

import (
	"testing"

	"github.com/pg-sharding/shroute/pkg/models/datanode"
	"github.com/stretchr/testify/assert"
)

func TestExpandExpression(t *testing.T) {
	assert := assert.New(t)

	type tcase struct {
		expr string
		exp  []string
		err  bool
	}

	for _, tt := range []tcase{
		{
			expr: "ds_${0..1}.t_order_${0..1}",
			exp:  []string{"ds_0.t_order_0", "ds_0.t_order_1", "ds_1.t_order_0", "ds_1.t_order_1"},
		},
		{
			expr: "ds_$->{0..2}.t_user",
			exp:  []string{"ds_0.t_user", "ds_1.t_user", "ds_2.t_user"},
		},
		{
			expr: "ds_${['a', 'b']}.t_user, ds_2.t_user",
			exp:  []string{"ds_a.t_user", "ds_b.t_user", "ds_2.t_user"},
		},
		{
			expr: "ds_0.t_order_0,ds_1.t_order_1",
			exp:  []string{"ds_0.t_order_0", "ds_1.t_order_1"},
		},
		{
			expr: "ds_${3..1}.t",
			err:  true,
		},
		{
			expr: "ds_${0..1.t",
			err:  true,
		},
	} {
		got, err := datanode.ExpandExpression(tt.expr)
		if tt.err {
			assert.Error(err, "expr %s", tt.expr)
			continue
		}
		assert.NoError(err, "expr %s", tt.expr)
		assert.Equal(tt.exp, got, "expr %s", tt.expr)
	}
}

func TestParseDataNode(t *testing.T) {
	assert := assert.New(t)

	dn, err := datanode.ParseDataNode("ds_0.t_order_0")
	assert.NoError(err)
	assert.Equal(datanode.DataNode{DataSourceName: "ds_0", TableName: "t_order_0"}, dn)
	assert.Equal("ds_0.t_order_0", dn.String())

	dn, err = datanode.ParseDataNode("ds_0.public.t_order_0")
	assert.NoError(err)
	assert.Equal("public", dn.SchemaName)
	assert.Equal("ds_0.public.t_order_0", dn.String())
	assert.Equal("public.t_order_0", dn.QualifiedTable())

	for _, bad := range []string{"t_order", "ds..t", "a.b.c.d", ""} {
		_, err := datanode.ParseDataNode(bad)
		assert.Error(err, "node %q", bad)
	}
}

func TestDataNodeEquality(t *testing.T) {
	assert := assert.New(t)

	a := datanode.DataNode{DataSourceName: "ds_0", SchemaName: "s", TableName: "t"}
	b := datanode.DataNode{DataSourceName: "ds_0", SchemaName: "s", TableName: "t"}
	c := datanode.DataNode{DataSourceName: "ds_0", TableName: "t"}

	assert.True(a == b)
	assert.False(a == c)
}

func TestParseDataNodes(t *testing.T) {
	assert := assert.New(t)

	nodes, err := datanode.ParseDataNodes("ds_${0..1}.t_order_${0..1}")
	assert.NoError(err)
	assert.Len(nodes, 4)
	assert.Equal("ds_1", nodes[3].DataSourceName)
	assert.Equal("t_order_1", nodes[3].TableName)
}
