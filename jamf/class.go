package jamf

import (
	"encoding/xml"
	"strings"
)

// classTypeUsernames is the only class type the encoder emits: members are
// identified by their Jamf username.
const classTypeUsernames = "Usernames"

// ClassRecord describes a Classic API class. Students and Teachers are
// usernames, emitted in the order given.
type ClassRecord struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Students    []string `yaml:"students" json:"students"`
	Teachers    []string `yaml:"teachers" json:"teachers"`
}

type classXML struct {
	XMLName     xml.Name      `xml:"class"`
	Name        string        `xml:"name"`
	Description string        `xml:"description"`
	Type        string        `xml:"type"`
	Students    classStudents `xml:"students"`
	Teachers    classTeachers `xml:"teachers"`
}

type classStudents struct {
	Student []string `xml:"student"`
}

type classTeachers struct {
	Teacher []string `xml:"teacher"`
}

// EncodeClassRecord renders record as the XML body of a Classic API class:
//
//	<class><name>Math</name><description>d</description><type>Usernames</type>
//	<students><student>a</student></students><teachers><teacher>t</teacher></teachers></class>
//
// The students and teachers wrappers are always present, empty when the list
// is. A blank name or a blank username is a KindEncoding error.
func EncodeClassRecord(record ClassRecord) ([]byte, error) {
	if strings.TrimSpace(record.Name) == "" {
		return nil, encodingError("class record: name is required")
	}
	for i, s := range record.Students {
		if strings.TrimSpace(s) == "" {
			return nil, encodingError("class record %q: student %d is empty", record.Name, i)
		}
	}
	for i, t := range record.Teachers {
		if strings.TrimSpace(t) == "" {
			return nil, encodingError("class record %q: teacher %d is empty", record.Name, i)
		}
	}

	out, err := xml.Marshal(classXML{
		Name:        record.Name,
		Description: record.Description,
		Type:        classTypeUsernames,
		Students:    classStudents{Student: record.Students},
		Teachers:    classTeachers{Teacher: record.Teachers},
	})
	if err != nil {
		return nil, &Error{Kind: KindEncoding, Message: "class record", Err: err}
	}
	return out, nil
}
