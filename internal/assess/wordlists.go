package assess

import "strings"

// Three-tier frequency vocabulary used by [WordFrequencyScore]. Tier
// membership follows BNC/COCA frequency bands: basicWords approximates the
// 1,000 most frequent English words, intermediateWords the 1,001–3,000
// band. Anything outside both tiers counts as advanced.
//
// Weights per tier: basic 0.3, intermediate 0.6, advanced 1.0.

// wordSet builds a membership set from a whitespace-separated word list.
func wordSet(words string) map[string]struct{} {
	fields := strings.Fields(words)
	set := make(map[string]struct{}, len(fields))
	for _, w := range fields {
		set[w] = struct{}{}
	}
	return set
}

var basicWords = wordSet(`
the be to of and a in that have i
it for not on with he as you do at
this but his by from they we say her she
or an will my one all would there their what
so up out if about who get which go me
when make can like time no just him know take
people into year your good some could them see
other than then now look only come its over think
also back after use two how our work first well
way even new want because any these give day most
us house car school water food money life child
world hand part place case week company system
program question government number night point city
play small large next early young important few
public bad same able human local sure free real
best black white already name need home face
today here help every family body music color
friend room story fact idea air month lot
right study book eye job word business issue
side kind head service area national pay
become move live hold run bring happen write
provide sit stand lose meet include continue
set learn change lead understand watch follow
stop create speak read spend grow open walk
win offer remember love consider appear buy wait
serve die send expect build stay fall cut reach
kill remain suggest raise pass sell require report
decide pull feel talk keep let put mean
call try ask leave seem start show hear
turn find tell given end long down
own old big high different little last
much many great still another each both between
through during before never always around something
nothing everything everyone someone anyone nobody
almost often together sometimes however though
without again ago yet since while under along
near below above across behind within against
upon inside outside until toward
front left top bottom far away
maybe perhaps definitely probably soon later
once twice enough either neither
whose where why whether whenever whatever whoever
although because unless
door window floor wall table chair bed light
road street town country land sea river field
tree flower fire sun moon star sky rain snow
dog cat bird fish horse cow pig sheep bear
red blue green yellow brown grey orange purple
hot cold warm cool dry wet hard soft heavy
fast slow quiet loud clean dirty
close full empty strong weak safe happy sad
angry afraid ready true false possible likely
easy difficult simple complex clear dark deep
short wide narrow round flat straight sharp
`)

var intermediateWords = wordSet(`
achieve analyze approach aspect assume authority
available benefit concept consistent context contract
contribute culture define develop distribute
economy environment establish evaluate evidence factor
financial focus function identify impact indicate
individual initial involved major method occur
percent period policy positive potential previous
primary process professional project research
resource response result role section significant
similar specific structure technology theory tradition
unique various increase reduce
affect support maintain demonstrate obtain
participate alternative comprehensive efficient
fundamental generation global implement integration
mechanism objective perspective phenomenon principle
procedure represent sector strategy sufficient survey
acquire adapt adequate adjacent adjust administration
adult advocate allocate ambiguous anticipate
appropriate approximate assist associate attribute
capacity category challenge circumstance clarify
colleague communicate community compare component
conduct conflict consequence constitute
constraint construct consume contemporary contrast
controversy coordinate correspond criteria critical
debate decline deduce derive despite
determine dimension diverse document domain
emerge enable enhance ensure equivalent examine
expose feature flexible generate hypothesis
illustrate imply incorporate inevitable innovation
investigate justify minimum modify
monitor motivation network neutral notion
outcome output overall parameter participant
perception priority proportion pursue
qualify quantity range ratio refer region
regulate relationship relevant resolve retain
simulate source stability
status substitute summarize target task technique
transformation transition trend underlying utilize
valid variable verify vision volume
access accurate acknowledge acute
aggregate align annual apparent arbitrary
assess assignment assure attached
attitude background balanced barrier behavior
capital channel characteristic classify
coefficient coherent collaborate commence commit
comparable compatible compel competent compile
complement compliant concentrate
conclusion configure confine confirm confront
convince correlate crucial currency
data dedicate degrade demand
describe designate detect devote digital
direct discrete draft dynamic
elaborate eliminate emphasize empirical engage
entity estimate eventually exhibit expertise
explicit explore external facilitate feedback
format formula framework frequency genuine
guarantee guideline hierarchy highlight
immense implicit impose inherent
input insight instance interact internal
interpret introduce involve isolate
label layer logic maximize
minimize mutual negative optimal
organize parallel pattern phase physical
position precise predict prefer preliminary
prescribe preserve promote propose
protocol recognize recommend recover
refine reinforce release rely remove
restrict review revise
schedule scope select sequence
specify standard stimulate submit terminate
transfer transform uniform update
validate version
`)
