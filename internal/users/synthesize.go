package users

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// Record 合成用户信息
type Record struct {
	UserID      int64   `json:"user_id"`
	NameKR      string  `json:"name_kr"`
	NameEN      string  `json:"name_en"`
	Age         int     `json:"age"`
	GenderKR    string  `json:"gender_kr"`
	GenderEN    string  `json:"gender_en"`
	RegionKR    string  `json:"region_kr"`
	RegionEN    string  `json:"region_en"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	PhoneNumber string  `json:"phone_number"`
}

// RecordColumns 合成用户表列顺序
var RecordColumns = []string{
	"user_id", "name_kr", "name_en", "age", "gender_kr", "gender_en",
	"region_kr", "region_en", "latitude", "longitude", "phone_number",
}

// Strings 按 RecordColumns 顺序输出
func (r Record) Strings() []string {
	return []string{
		strconv.FormatInt(r.UserID, 10),
		r.NameKR,
		r.NameEN,
		strconv.Itoa(r.Age),
		r.GenderKR,
		r.GenderEN,
		r.RegionKR,
		r.RegionEN,
		strconv.FormatFloat(r.Latitude, 'f', -1, 64),
		strconv.FormatFloat(r.Longitude, 'f', -1, 64),
		r.PhoneNumber,
	}
}

type region struct {
	kr, en   string
	lat, lng float64
}

var regions = []region{
	{"서울특별시", "Seoul", 37.5665, 126.9780},
	{"부산광역시", "Busan", 35.1796, 129.0756},
	{"인천광역시", "Incheon", 37.4563, 126.7052},
	{"대구광역시", "Daegu", 35.8714, 128.6014},
	{"대전광역시", "Daejeon", 36.3504, 127.3845},
	{"광주광역시", "Gwangju", 35.1595, 126.8526},
	{"울산광역시", "Ulsan", 35.5384, 129.3114},
	{"세종특별자치시", "Sejong", 36.4800, 127.2890},
	{"경기도 수원시", "Suwon, Gyeonggi-do", 37.2636, 127.0286},
	{"경기도 고양시", "Goyang, Gyeonggi-do", 37.6559, 126.8350},
	{"경기도 용인시", "Yongin, Gyeonggi-do", 37.2410, 127.1775},
	{"경기도 성남시", "Seongnam, Gyeonggi-do", 37.4449, 127.1389},
	{"경기도 부천시", "Bucheon, Gyeonggi-do", 37.5035, 126.7882},
	{"경기도 안산시", "Ansan, Gyeonggi-do", 37.3217, 126.8309},
	{"경기도 화성시", "Hwaseong, Gyeonggi-do", 37.1995, 127.0969},
	{"경기도 남양주시", "Namyangju, Gyeonggi-do", 37.6363, 127.2165},
	{"경기도 안양시", "Anyang, Gyeonggi-do", 37.3943, 126.9568},
	{"경기도 평택시", "Pyeongtaek, Gyeonggi-do", 36.9921, 127.1129},
	{"경기도 시흥시", "Siheung, Gyeonggi-do", 37.3799, 126.8032},
	{"경기도 파주시", "Paju, Gyeonggi-do", 37.7599, 126.7730},
	{"경기도 김포시", "Gimpo, Gyeonggi-do", 37.6155, 126.7156},
	{"경기도 의정부시", "Uijeongbu, Gyeonggi-do", 37.7380, 127.0437},
	{"경기도 광주시", "Gwangju, Gyeonggi-do", 37.4292, 127.2550},
	{"경기도 하남시", "Hanam, Gyeonggi-do", 37.5395, 127.2149},
	{"충청북도 청주시", "Cheongju, Chungcheongbuk-do", 36.6424, 127.4890},
	{"충청남도 천안시", "Cheonan, Chungcheongnam-do", 36.8151, 127.1135},
	{"충청남도 아산시", "Asan, Chungcheongnam-do", 36.7798, 127.0046},
	{"전라북도 전주시", "Jeonju, Jeollabuk-do", 35.8242, 127.1480},
	{"전라북도 익산시", "Iksan, Jeollabuk-do", 35.9483, 126.9576},
	{"전라남도 여수시", "Yeosu, Jeollanam-do", 34.7604, 127.6622},
	{"전라남도 순천시", "Suncheon, Jeollanam-do", 34.9506, 127.4872},
	{"경상북도 포항시", "Pohang, Gyeongsangbuk-do", 36.0199, 129.3436},
	{"경상북도 구미시", "Gumi, Gyeongsangbuk-do", 36.1194, 128.3445},
	{"경상북도 경산시", "Gyeongsan, Gyeongsangbuk-do", 35.8250, 128.7414},
	{"경상남도 창원시", "Changwon, Gyeongsangnam-do", 35.2540, 128.6420},
	{"경상남도 김해시", "Gimhae, Gyeongsangnam-do", 35.2281, 128.8892},
	{"경상남도 양산시", "Yangsan, Gyeongsangnam-do", 35.3350, 129.0386},
	{"강원도 춘천시", "Chuncheon, Gangwon-do", 37.8747, 127.7342},
	{"강원도 원주시", "Wonju, Gangwon-do", 37.3447, 127.9209},
	{"강원도 강릉시", "Gangneung, Gangwon-do", 37.7519, 128.8760},
	{"제주특별자치도", "Jeju Special Self-Governing Province", 33.4996, 126.5312},
}

type surname struct {
	kr, en string
	weight float64
}

// 按人口比例加权
var surnames = []surname{
	{"김", "Kim", 0.2156}, {"이", "Lee", 0.1468}, {"박", "Park", 0.0973}, {"최", "Choi", 0.0462},
	{"정", "Jung", 0.0485}, {"강", "Kang", 0.0260}, {"조", "Jo", 0.0306}, {"윤", "Yoon", 0.0185},
	{"장", "Jang", 0.0184}, {"임", "Lim", 0.0217}, {"한", "Han", 0.0151}, {"오", "Oh", 0.0142},
	{"서", "Seo", 0.0134}, {"신", "Shin", 0.0164}, {"권", "Kwon", 0.0111}, {"황", "Hwang", 0.0102},
	{"안", "Ahn", 0.0091}, {"송", "Song", 0.0088}, {"류", "Ryu", 0.0118}, {"전", "Jeon", 0.0120},
	{"홍", "Hong", 0.0080}, {"고", "Ko", 0.0070}, {"문", "Moon", 0.0067}, {"양", "Yang", 0.0064},
	{"손", "Son", 0.0096}, {"배", "Bae", 0.0062}, {"백", "Baek", 0.0088}, {"허", "Heo", 0.0086},
	{"유", "Yoo", 0.0088}, {"남", "Nam", 0.0051}, {"심", "Shim", 0.0049}, {"노", "Noh", 0.0048},
	{"하", "Ha", 0.0046}, {"곽", "Kwak", 0.0045}, {"성", "Sung", 0.0044}, {"차", "Cha", 0.0043},
	{"주", "Joo", 0.0042}, {"우", "Woo", 0.0041}, {"구", "Koo", 0.0040}, {"민", "Min", 0.0036},
}

type syllable struct{ kr, en string }

var maleSyllables = []syllable{
	{"준", "Jun"}, {"민", "Min"}, {"현", "Hyun"}, {"수", "Su"}, {"우", "Woo"}, {"진", "Jin"},
	{"재", "Jae"}, {"석", "Seok"}, {"영", "Young"}, {"기", "Ki"}, {"태", "Tae"}, {"형", "Hyung"},
	{"선", "Sun"}, {"호", "Ho"}, {"성", "Sung"}, {"찬", "Chan"}, {"동", "Dong"}, {"혁", "Hyuk"},
	{"훈", "Hoon"}, {"상", "Sang"}, {"원", "Won"}, {"철", "Chul"}, {"정", "Jung"}, {"인", "In"},
	{"환", "Hwan"}, {"용", "Yong"}, {"한", "Han"}, {"규", "Kyu"}, {"연", "Yeon"}, {"중", "Jung"},
	{"광", "Kwang"}, {"명", "Myung"}, {"종", "Jong"}, {"학", "Hak"}, {"범", "Beom"}, {"빈", "Bin"},
	{"근", "Keun"}, {"균", "Kyun"},
}

var femaleSyllables = []syllable{
	{"지", "Ji"}, {"수", "Su"}, {"현", "Hyun"}, {"민", "Min"}, {"영", "Young"}, {"서", "Seo"},
	{"주", "Ju"}, {"혜", "Hye"}, {"은", "Eun"}, {"유", "Yu"}, {"미", "Mi"}, {"아", "A"},
	{"연", "Yeon"}, {"희", "Hee"}, {"진", "Jin"}, {"선", "Sun"}, {"정", "Jung"}, {"다", "Da"},
	{"예", "Ye"}, {"채", "Chae"}, {"윤", "Yoon"}, {"나", "Na"}, {"원", "Won"}, {"소", "So"},
	{"하", "Ha"}, {"경", "Kyung"}, {"인", "In"}, {"승", "Seung"}, {"빈", "Bin"}, {"가", "Ga"},
	{"율", "Yul"}, {"리", "Ri"}, {"보", "Bo"}, {"설", "Seol"}, {"화", "Hwa"}, {"양", "Yang"},
	{"애", "Ae"}, {"성", "Sung"},
}

// Synthesize 生成 n 条合成用户（9 位 user_id，年龄 60-99）
func Synthesize(n int, rng *rand.Rand) []Record {
	total := 0.0
	for _, s := range surnames {
		total += s.weight
	}

	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		id := int64(100000000 + rng.Intn(900000000))

		male := rng.Intn(2) == 0
		genderKR, genderEN, pool := "남", "Male", maleSyllables
		if !male {
			genderKR, genderEN, pool = "여", "Female", femaleSyllables
		}

		sn := pickSurname(rng.Float64() * total)
		a, b := pool[rng.Intn(len(pool))], pool[rng.Intn(len(pool))]

		reg := regions[rng.Intn(len(regions))]
		age := 60 + rng.Intn(40)
		phone := fmt.Sprintf("010%04d%04d", 1000+rng.Intn(9000), 1000+rng.Intn(9000))

		out = append(out, Record{
			UserID:      id,
			NameKR:      sn.kr + a.kr + b.kr,
			NameEN:      sn.en + " " + a.en + b.en,
			Age:         age,
			GenderKR:    genderKR,
			GenderEN:    genderEN,
			RegionKR:    reg.kr,
			RegionEN:    reg.en,
			Latitude:    reg.lat,
			Longitude:   reg.lng,
			PhoneNumber: phone,
		})
	}
	return out
}

func pickSurname(x float64) surname {
	for _, s := range surnames {
		if x < s.weight {
			return s
		}
		x -= s.weight
	}
	return surnames[len(surnames)-1]
}

// WriteCSV 写出 CSV（带 UTF-8 BOM，兼容表格软件打开韩文）
func WriteCSV(w io.Writer, records []Record) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write bom: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(RecordColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(r.Strings()); err != nil {
			return fmt.Errorf("failed to write record %d: %w", r.UserID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON 写出对象数组
func WriteJSON(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// recordBody 以 user_id 为键时的值结构
type recordBody struct {
	NameKR      string  `json:"name_kr"`
	NameEN      string  `json:"name_en"`
	Age         int     `json:"age"`
	GenderKR    string  `json:"gender_kr"`
	GenderEN    string  `json:"gender_en"`
	RegionKR    string  `json:"region_kr"`
	RegionEN    string  `json:"region_en"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	PhoneNumber string  `json:"phone_number"`
}

// WriteJSONByID 写出以 user_id 为键的对象
func WriteJSONByID(w io.Writer, records []Record) error {
	byID := make(map[string]recordBody, len(records))
	for _, r := range records {
		byID[strconv.FormatInt(r.UserID, 10)] = recordBody{
			NameKR:      r.NameKR,
			NameEN:      r.NameEN,
			Age:         r.Age,
			GenderKR:    r.GenderKR,
			GenderEN:    r.GenderEN,
			RegionKR:    r.RegionKR,
			RegionEN:    r.RegionEN,
			Latitude:    r.Latitude,
			Longitude:   r.Longitude,
			PhoneNumber: r.PhoneNumber,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(byID)
}

// WriteXLSX 写出 Excel 工作簿（单个工作表，首行表头）
func WriteXLSX(w io.Writer, records []Record) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.Strings())
	}
	return WriteGridXLSX(w, "Users", RecordColumns, rows)
}

// WriteGridXLSX 将表头与字符串行写成 Excel
func WriteGridXLSX(w io.Writer, sheetName string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	// 默认工作表改名，避免留下空白的 Sheet1
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	if err := sw.SetRow("A1", toCells(header)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := sw.SetRow(cell, toCells(row)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
