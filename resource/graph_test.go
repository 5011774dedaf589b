package resource

import (
	"fmt"
	"testing"

	"go.viam.com/test"
)

var sensorAPI = APIFromComponentSubtype("sensor")

func sensorName(name string) Name {
	return NewName(sensorAPI, name)
}

type fakeComponent struct {
	Name      Name
	DependsOn []Name
}

func TestGraphConstruct(t *testing.T) {
	for j, c := range []struct {
		conf []fakeComponent
		err  string
	}{
		{
			[]fakeComponent{
				{Name: sensorName("A")},
				{Name: sensorName("B"), DependsOn: []Name{sensorName("A")}},
				{Name: sensorName("C"), DependsOn: []Name{sensorName("B")}},
				{Name: sensorName("D"), DependsOn: []Name{sensorName("A"), sensorName("C")}},
			},
			"",
		},
		{
			[]fakeComponent{
				{Name: sensorName("A"), DependsOn: []Name{sensorName("B")}},
				{Name: sensorName("B"), DependsOn: []Name{sensorName("A")}},
			},
			`circular dependency - "A" already depends on "B"`,
		},
		{
			[]fakeComponent{
				{Name: sensorName("A")},
				{Name: sensorName("B"), DependsOn: []Name{sensorName("B")}},
			},
			`"B" cannot depend on itself`,
		},
	} {
		t.Run(fmt.Sprintf("graph building %d", j), func(t *testing.T) {
			g := NewGraph()
			for i, component := range c.conf {
				g.AddNode(component.Name)
				for _, dep := range component.DependsOn {
					err := g.AddDependency(component.Name, dep)
					if i > 0 && c.err != "" {
						test.That(t, err, test.ShouldNotBeNil)
						test.That(t, err.Error(), test.ShouldContainSubstring, c.err)
					} else {
						test.That(t, err, test.ShouldBeNil)
					}
				}
			}
		})
	}
}

func TestGraphTopologicalSort(t *testing.T) {
	boardAPI := APIFromComponentSubtype("board")
	local := NewName(boardAPI, "local")

	g := NewGraph()
	g.AddNode(sensorName("baro"))
	test.That(t, g.AddDependency(sensorName("scale"), local), test.ShouldBeNil)
	test.That(t, g.AddDependency(sensorName("imu"), local), test.ShouldBeNil)
	test.That(t, g.AddDependency(sensorName("fused"), sensorName("imu")), test.ShouldBeNil)

	test.That(t, g.TopologicalSort(), test.ShouldResemble, []Name{
		local,
		sensorName("baro"),
		sensorName("imu"),
		sensorName("scale"),
		sensorName("fused"),
	})
	test.That(t, g.ReverseTopologicalSort(), test.ShouldResemble, []Name{
		sensorName("fused"),
		sensorName("scale"),
		sensorName("imu"),
		sensorName("baro"),
		local,
	})

	test.That(t, g.DependsOn(sensorName("fused"), local), test.ShouldBeTrue)
	test.That(t, g.DependsOn(local, sensorName("fused")), test.ShouldBeFalse)

	g.Remove(sensorName("imu"))
	test.That(t, g.TopologicalSort(), test.ShouldResemble, []Name{
		local,
		sensorName("baro"),
		sensorName("fused"),
		sensorName("scale"),
	})
}
